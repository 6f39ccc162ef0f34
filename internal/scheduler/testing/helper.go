// internal/scheduler/testing/helper.go
package testing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"gorm.io/gorm"
)

// TimeAccelerator helps fast-forward sponsorship windows for testing
type TimeAccelerator struct {
	db *gorm.DB
}

func NewTimeAccelerator(db *gorm.DB) *TimeAccelerator {
	return &TimeAccelerator{db: db}
}

// FastForwardSponsorship moves expires_at into the past for one code
func (ta *TimeAccelerator) FastForwardSponsorship(ctx context.Context, recordID snowflake.ID) error {
	now := time.Now().UTC()
	return ta.db.WithContext(ctx).Exec(
		`UPDATE sponsorship_records
		 SET expires_at = ?, updated_at = ?
		 WHERE id = ? AND status IN ?`,
		now.Add(-1*time.Minute), // 1 minute ago to trigger the expiry sweep
		now,
		recordID,
		[]engine.SponsorshipStatus{engine.SponsorshipPending, engine.SponsorshipActive},
	).Error
}

// FastForwardBatch moves expires_at into the past for every live code in a batch
func (ta *TimeAccelerator) FastForwardBatch(ctx context.Context, batchID snowflake.ID) (int64, error) {
	now := time.Now().UTC()
	result := ta.db.WithContext(ctx).Exec(
		`UPDATE sponsorship_records
		 SET expires_at = ?, updated_at = ?
		 WHERE batch_id = ? AND status IN ?`,
		now.Add(-1*time.Minute),
		now,
		batchID,
		[]engine.SponsorshipStatus{engine.SponsorshipPending, engine.SponsorshipActive},
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// FastForwardEventSponsorships speeds up all live codes of an event
func (ta *TimeAccelerator) FastForwardEventSponsorships(ctx context.Context, eventID snowflake.ID) (int64, error) {
	now := time.Now().UTC()
	result := ta.db.WithContext(ctx).Exec(
		`UPDATE sponsorship_records
		 SET expires_at = ?, updated_at = ?
		 WHERE event_id = ? AND status IN ?`,
		now.Add(-1*time.Minute),
		now,
		eventID,
		[]engine.SponsorshipStatus{engine.SponsorshipPending, engine.SponsorshipActive},
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SetSponsorshipWindow allows a custom expiry for testing
func (ta *TimeAccelerator) SetSponsorshipWindow(ctx context.Context, recordID snowflake.ID, expiresAt time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE sponsorship_records
		 SET expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		expiresAt,
		time.Now().UTC(),
		recordID,
	).Error
}

// FastForwardSessions expires every live session so the cleanup sweep has work
func (ta *TimeAccelerator) FastForwardSessions(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	result := ta.db.WithContext(ctx).Exec(
		`UPDATE sessions
		 SET expires_at = ?
		 WHERE expires_at > ?`,
		now.Add(-1*time.Minute),
		now,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SponsorshipInfo shows current code state for debugging
type SponsorshipInfo struct {
	ID              snowflake.ID
	Status          engine.SponsorshipStatus
	ExpiresAt       *time.Time
	TimeUntilExpiry time.Duration
	CanExpire       bool
}

func (ta *TimeAccelerator) GetSponsorshipInfo(ctx context.Context, recordID snowflake.ID) (*SponsorshipInfo, error) {
	var record struct {
		ID        snowflake.ID
		Status    engine.SponsorshipStatus
		ExpiresAt *time.Time
	}

	err := ta.db.WithContext(ctx).Raw(
		`SELECT id, status, expires_at
		 FROM sponsorship_records
		 WHERE id = ?`,
		recordID,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	info := &SponsorshipInfo{
		ID:        record.ID,
		Status:    record.Status,
		ExpiresAt: record.ExpiresAt,
	}
	if record.ExpiresAt != nil {
		info.TimeUntilExpiry = record.ExpiresAt.Sub(now)
		live := record.Status == engine.SponsorshipPending || record.Status == engine.SponsorshipActive
		info.CanExpire = live && now.After(*record.ExpiresAt)
	}

	return info, nil
}

// ReinstateSponsorship reopens an expired code (dangerous, for testing only!)
func (ta *TimeAccelerator) ReinstateSponsorship(ctx context.Context, recordID snowflake.ID, expiresAt time.Time) error {
	now := time.Now().UTC()
	return ta.db.WithContext(ctx).Exec(
		`UPDATE sponsorship_records
		 SET status = ?,
		     expires_at = ?,
		     updated_at = ?
		 WHERE id = ? AND status = ?`,
		engine.SponsorshipActive,
		expiresAt,
		now,
		recordID,
		engine.SponsorshipExpired,
	).Error
}
