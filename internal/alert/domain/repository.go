package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// FindCandidates scans published events at or over thresholdPct of
	// capacity that carry no ACTIVE alert.
	FindCandidates(ctx context.Context, db *gorm.DB, thresholdPct float64, limit int) ([]Candidate, error)

	// Raise inserts an ACTIVE alert unless one already exists for the event.
	// It reports whether a row was inserted.
	Raise(ctx context.Context, db *gorm.DB, alert *CapacityAlert) (bool, error)

	// ResolveRecovered closes ACTIVE alerts whose events fell back under the
	// threshold, lost their cap, or left PUBLISHED. Returns rows changed.
	ResolveRecovered(ctx context.Context, db *gorm.DB, thresholdPct float64, now time.Time) (int64, error)

	ListActiveByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]AlertListItem, error)
}
