package domain

import (
	"context"
	"errors"
	"time"

	formdomain "github.com/smallbiznis/eventra/internal/form/domain"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
)

// SubmitRequest is the public submission payload. Pricing inputs share the
// engine's request vocabulary so preview and submit cannot drift.
type SubmitRequest struct {
	EventID          string             `json:"event_id"`
	AttendeeName     string             `json:"attendee_name"`
	AttendeeEmail    string             `json:"attendee_email"`
	FormData         map[string]any     `json:"form_data,omitempty"`
	SelectedAddOns   []engine.Selection `json:"selected_add_ons,omitempty"`
	SponsorshipCodes []string           `json:"sponsorship_codes,omitempty"`
}

type PreviewRequest struct {
	EventID          string             `json:"event_id"`
	FormData         map[string]any     `json:"form_data,omitempty"`
	SelectedAddOns   []engine.Selection `json:"selected_add_ons,omitempty"`
	SponsorshipCodes []string           `json:"sponsorship_codes,omitempty"`
}

type GetRequest struct {
	ID string
}

type ListRequest struct {
	EventID   string
	Status    string
	Search    string
	From      *time.Time
	To        *time.Time
	PageToken string
	PageSize  int32
}

type ListResponse struct {
	Registrations []Registration      `json:"registrations"`
	PageInfo      pagination.PageInfo `json:"page_info"`
}

type CancelRequest struct {
	ID string
}

type ResendRequest struct {
	ID string
}

type UpdateSettingsRequest struct {
	RequireReview        *bool   `json:"require_review,omitempty"`
	WaitlistEnabled      *bool   `json:"waitlist_enabled,omitempty"`
	DefaultCurrency      *string `json:"default_currency,omitempty"`
	ReceiptNumberPattern *string `json:"receipt_number_pattern,omitempty"`
}

// SubmissionError rejects a submission whose answers fail form validation.
// It aggregates every field problem so the attendee can fix them in one
// round trip.
type SubmissionError struct {
	FieldErrors []formdomain.FieldError `json:"field_errors"`
}

func (e *SubmissionError) Error() string {
	return "invalid_submission"
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEvent        = errors.New("invalid_event")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_attendee_name")
	ErrInvalidEmail        = errors.New("invalid_attendee_email")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrNotFound            = errors.New("registration_not_found")
	ErrEventNotOpen        = errors.New("event_not_open")
	ErrEventFull           = errors.New("event_capacity_exceeded")
	ErrNotApprovable       = errors.New("registration_not_approvable")
	ErrNotCancellable      = errors.New("registration_not_cancellable")
	ErrNotResendable       = errors.New("registration_not_resendable")
)

type Service interface {
	// Preview prices a would-be submission without reserving anything.
	Preview(ctx context.Context, req PreviewRequest) (engine.Breakdown, error)

	// Submit validates answers, prices the submission, and commits it in one
	// transaction: capacity increments, sponsorship redemptions, the
	// registration row, and its receipt all win or all roll back.
	Submit(ctx context.Context, req SubmitRequest) (*Registration, error)

	Get(ctx context.Context, req GetRequest) (*Registration, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)

	// Approve confirms a registration held for review. Only PENDING rows
	// are approvable; the commit already reserved everything, so approval
	// is a status flip plus the confirmation email.
	Approve(ctx context.Context, req GetRequest) (*Registration, error)

	// Cancel keeps the row with status CANCELLED and gives back what the
	// commit took: event and add-on capacity, and sponsorship balances.
	Cancel(ctx context.Context, req CancelRequest) (*Registration, error)

	// Resend re-sends the confirmation email for a live registration.
	Resend(ctx context.Context, req ResendRequest) error

	ListAddOns(ctx context.Context, registrationID string) ([]RegistrationAddOn, error)

	GetSettings(ctx context.Context) (RegistrationSettings, error)
	UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (RegistrationSettings, error)
}
