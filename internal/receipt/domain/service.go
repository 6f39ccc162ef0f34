package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"gorm.io/gorm"
)

// IssueRequest carries everything needed to turn a registration's final
// breakdown into a numbered receipt. IDs are explicit because Issue runs
// inside the caller's transaction, not off the request context.
type IssueRequest struct {
	OrgID          snowflake.ID
	RegistrationID snowflake.ID
	EventID        snowflake.ID
	EventName      string
	AttendeeName   string
	AttendeeEmail  string
	Breakdown      engine.Breakdown
	IssuedAt       time.Time

	// NumberPattern overrides the default receipt number template when set.
	NumberPattern string
}

type GetRequest struct {
	ReceiptID string
}

type ListByEventRequest struct {
	EventID string
	pagination.Pagination
}

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidEvent         = errors.New("invalid_event")
	ErrInvalidRegistration  = errors.New("invalid_registration")
	ErrInvalidID            = errors.New("invalid_id")
	ErrNotFound             = errors.New("receipt_not_found")
	ErrRenderingUnavailable = errors.New("rendering_unavailable")
)

type Service interface {
	// Issue writes a receipt inside the caller's transaction. Issuing twice
	// for the same registration returns the existing receipt unchanged.
	Issue(ctx context.Context, db *gorm.DB, req IssueRequest) (*Receipt, error)

	Get(ctx context.Context, req GetRequest) (*Receipt, error)
	GetByRegistration(ctx context.Context, registrationID snowflake.ID) (*Receipt, error)
	ListByEvent(ctx context.Context, req ListByEventRequest) ([]Receipt, *pagination.PageInfo, error)

	RenderHTML(ctx context.Context, req GetRequest) (string, error)
	RenderPDF(ctx context.Context, req GetRequest) (io.Reader, error)
}
