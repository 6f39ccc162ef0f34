package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
)

type CreateBatchRequest struct {
	EventID         string     `json:"event_id"`
	ClientID        string     `json:"client_id,omitempty"`
	Name            string     `json:"name"`
	CodePrefix      string     `json:"code_prefix,omitempty"`
	Quantity        int        `json:"quantity"`
	AmountPerCode   int64      `json:"amount_per_code"`
	Currency        string     `json:"currency,omitempty"`
	Coverage        string     `json:"coverage,omitempty"`
	CoveredAddOnIDs []string   `json:"covered_add_on_ids,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

type GetBatchRequest struct {
	ID string
}

type ListBatchRequest struct {
	EventID  string
	ClientID string
}

// BatchWithStats decorates a batch with live aggregates for admin views.
type BatchWithStats struct {
	SponsorshipBatch
	IssuedCount    int64 `json:"issued_count"`
	ConsumedCount  int64 `json:"consumed_count"`
	TotalAmount    int64 `json:"total_amount"`
	ConsumedAmount int64 `json:"consumed_amount"`
}

type ListRecordRequest struct {
	PageToken string
	PageSize  int32
	BatchID   string
	EventID   string
	Status    string
	Code      string
}

type ListRecordFilter struct {
	BatchID snowflake.ID
	EventID snowflake.ID
	Status  engine.SponsorshipStatus
	Code    string
}

type ListRecordResponse struct {
	pagination.PageInfo
	Records []SponsorshipRecord `json:"records"`
}

type GetRecordRequest struct {
	ID string
}

type Service interface {
	// CreateBatch issues Quantity unique codes in one transaction and returns
	// the batch with its records.
	CreateBatch(context.Context, CreateBatchRequest) (SponsorshipBatch, []SponsorshipRecord, error)
	GetBatch(context.Context, GetBatchRequest) (BatchWithStats, error)
	ListBatches(context.Context, ListBatchRequest) ([]BatchWithStats, error)
	ListRecords(context.Context, ListRecordRequest) (ListRecordResponse, error)
	GetRecord(context.Context, GetRecordRequest) (SponsorshipRecord, error)
	GetByCode(ctx context.Context, orgID, eventID snowflake.ID, code string) (SponsorshipRecord, error)

	ActivateRecord(context.Context, GetRecordRequest) (SponsorshipRecord, error)
	CancelRecord(context.Context, GetRecordRequest) (SponsorshipRecord, error)
	ActivateBatch(context.Context, GetBatchRequest) (int64, error)
	CancelBatch(context.Context, GetBatchRequest) (int64, error)

	// ResolveForPricing returns the engine view of a code, or nil when the
	// code does not exist for the event. Expired but unflipped records come
	// back with status EXPIRED so the engine reports them invalid.
	ResolveForPricing(ctx context.Context, orgID, eventID snowflake.ID, code string) (*engine.Sponsorship, error)

	// ExpireDue flips past-expiry PENDING/ACTIVE records to EXPIRED and
	// returns how many rows changed. The scheduler drives this.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEvent        = errors.New("invalid_event")
	ErrInvalidClient       = errors.New("invalid_client")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidCoverage     = errors.New("invalid_coverage")
	ErrInvalidPrefix       = errors.New("invalid_code_prefix")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrNotTransitionable   = errors.New("status_not_transitionable")
	ErrCodeExhausted       = errors.New("sponsorship_exhausted")
)
