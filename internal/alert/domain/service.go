package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Candidate is a published event over the capacity threshold that has no
// ACTIVE alert yet.
type Candidate struct {
	EventID         snowflake.ID `gorm:"column:event_id"`
	OrgID           snowflake.ID `gorm:"column:org_id"`
	Title           string       `gorm:"column:title"`
	MaxCapacity     int64        `gorm:"column:max_capacity"`
	RegisteredCount int64        `gorm:"column:registered_count"`
}

// AlertListItem is an alert joined with its event title for display.
type AlertListItem struct {
	ID              snowflake.ID `gorm:"column:id" json:"id"`
	EventID         snowflake.ID `gorm:"column:event_id" json:"event_id"`
	EventTitle      string       `gorm:"column:event_title" json:"event_title"`
	ThresholdPct    float64      `gorm:"column:threshold_pct" json:"threshold_pct"`
	MaxCapacity     int64        `gorm:"column:max_capacity" json:"max_capacity"`
	RegisteredCount int64        `gorm:"column:registered_count" json:"registered_count"`
	Status          AlertStatus  `gorm:"column:status" json:"status"`
	RaisedAt        time.Time    `gorm:"column:raised_at" json:"raised_at"`
	ResolvedAt      *time.Time   `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
}

type Service interface {
	// FindCandidates returns events at or over thresholdPct of capacity
	// without an ACTIVE alert, oldest event first.
	FindCandidates(ctx context.Context, thresholdPct float64, limit int) ([]Candidate, error)
	// Raise opens an ACTIVE alert for the candidate. It reports false when a
	// concurrent pass already opened one.
	Raise(ctx context.Context, candidate Candidate, thresholdPct float64, now time.Time) (bool, error)
	// ResolveRecovered flips ACTIVE alerts whose events dropped back under
	// the threshold, were archived, or became uncapped.
	ResolveRecovered(ctx context.Context, thresholdPct float64, now time.Time) (int64, error)
	// ListActive returns open alerts for the organization in context.
	ListActive(ctx context.Context) ([]AlertListItem, error)
}

var (
	ErrInvalidThreshold    = errors.New("invalid_threshold")
	ErrInvalidOrganization = errors.New("invalid_organization")
)
