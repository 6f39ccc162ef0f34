package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEvent        = errors.New("invalid_event_id")
	ErrInvalidRange        = errors.New("invalid_date_range")
)

// SeriesRequest bounds the per-day series. A zero From/To pair defaults to
// the trailing 30 days; EventID narrows the series to a single event.
type SeriesRequest struct {
	EventID string
	From    time.Time
	To      time.Time
}

type Service interface {
	Overview(ctx context.Context) (Overview, error)
	RegistrationSeries(ctx context.Context, req SeriesRequest) ([]SeriesPoint, error)
	TopAddOns(ctx context.Context, limit int) ([]AddOnStat, error)
	SponsorshipUtilization(ctx context.Context) ([]BatchUtilization, error)
}
