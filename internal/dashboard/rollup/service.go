package rollup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	dashboard "github.com/smallbiznis/eventra/internal/dashboard/domain"
	registrationdomain "github.com/smallbiznis/eventra/internal/registration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultChangedLimit = 500
	rebuildBatchSize    = 500
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p Params) *Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("dashboard.rollup"),
	}
}

// bucket identifies one rollup row: one event's numbers for one UTC day.
type bucket struct {
	OrgID   snowflake.ID
	EventID snowflake.ID
	Day     string
}

type changedRow struct {
	OrgID     snowflake.ID `gorm:"column:org_id"`
	EventID   snowflake.ID `gorm:"column:event_id"`
	CreatedAt time.Time    `gorm:"column:created_at"`
}

// RecomputeSince refreshes the daily buckets touched by registrations whose
// updated_at moved past since. A cancellation bumps updated_at on the
// original row, so the bucket that gets refreshed is the one keyed by the
// signup day.
func (s *Service) RecomputeSince(ctx context.Context, since time.Time, limit int) error {
	if limit <= 0 {
		limit = defaultChangedLimit
	}

	var rows []changedRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT org_id, event_id, created_at
		 FROM registrations
		 WHERE updated_at >= ?
		 ORDER BY updated_at ASC
		 LIMIT ?`,
		since,
		limit,
	).Scan(&rows).Error; err != nil {
		return err
	}

	var jobErr error
	for _, b := range bucketsOf(rows) {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.recomputeBucket(ctx, tx, b)
		}); err != nil {
			jobErr = errors.Join(jobErr, err)
			s.log.Warn("failed to recompute event stat bucket",
				zap.Error(err),
				zap.String("event_id", b.EventID.String()),
				zap.String("day", b.Day),
			)
		}
	}

	return jobErr
}

func bucketsOf(rows []changedRow) []bucket {
	seen := make(map[bucket]struct{}, len(rows))
	buckets := make([]bucket, 0, len(rows))
	for _, row := range rows {
		b := bucket{
			OrgID:   row.OrgID,
			EventID: row.EventID,
			Day:     row.CreatedAt.UTC().Format(dashboard.DayFormat),
		}
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		buckets = append(buckets, b)
	}
	return buckets
}

// RebuildRequest scopes a rollup rebuild. A nil OrgID rebuilds every org.
type RebuildRequest struct {
	OrgID *snowflake.ID
}

type rebuildRow struct {
	ID        snowflake.ID `gorm:"column:id"`
	OrgID     snowflake.ID `gorm:"column:org_id"`
	EventID   snowflake.ID `gorm:"column:event_id"`
	CreatedAt time.Time    `gorm:"column:created_at"`
}

// Rebuild wipes the rollup rows in scope and recomputes them from the
// registration tables, dropping buckets whose source rows no longer match.
func (s *Service) Rebuild(ctx context.Context, req RebuildRequest) error {
	scope := orgScope(req)

	if err := s.clearRollups(ctx, scope); err != nil {
		return err
	}

	seen := make(map[bucket]struct{})
	var buckets []bucket
	lastCreated := time.Time{}
	lastID := snowflake.ID(0)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		args := []any{lastCreated, lastCreated, lastID}
		query := `SELECT id, org_id, event_id, created_at
			FROM registrations
			WHERE (created_at > ? OR (created_at = ? AND id > ?))`
		if scope != nil {
			query += " AND org_id = ?"
			args = append(args, *scope)
		}
		query += " ORDER BY created_at ASC, id ASC LIMIT ?"
		args = append(args, rebuildBatchSize)

		var rows []rebuildRow
		if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			b := bucket{
				OrgID:   row.OrgID,
				EventID: row.EventID,
				Day:     row.CreatedAt.UTC().Format(dashboard.DayFormat),
			}
			if _, ok := seen[b]; !ok {
				seen[b] = struct{}{}
				buckets = append(buckets, b)
			}
			lastCreated = row.CreatedAt
			lastID = row.ID
		}
	}

	for _, b := range buckets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.recomputeBucket(ctx, tx, b)
		}); err != nil {
			return err
		}
	}

	return nil
}

func orgScope(req RebuildRequest) *snowflake.ID {
	if req.OrgID != nil && *req.OrgID != 0 {
		return req.OrgID
	}
	return nil
}

func (s *Service) clearRollups(ctx context.Context, orgID *snowflake.ID) error {
	if orgID == nil {
		return s.db.WithContext(ctx).Exec(`DELETE FROM event_stat_rollups`).Error
	}
	return s.db.WithContext(ctx).Exec(
		`DELETE FROM event_stat_rollups WHERE org_id = ?`,
		*orgID,
	).Error
}

type statsRow struct {
	Registrations int64 `gorm:"column:registrations"`
	Confirmed     int64 `gorm:"column:confirmed"`
	Pending       int64 `gorm:"column:pending"`
	Cancelled     int64 `gorm:"column:cancelled"`
	Waitlisted    int64 `gorm:"column:waitlisted"`
	Revenue       int64 `gorm:"column:revenue"`
}

type unitsRow struct {
	Units int64 `gorm:"column:units"`
}

type appliedRow struct {
	Applied int64 `gorm:"column:applied"`
}

// recomputeBucket rebuilds one rollup row from the base tables. The upsert
// overwrites rather than adds, so reprocessing a bucket is idempotent.
// Revenue counts confirmed and pending rows only: waitlisted rows never
// reserved anything and cancelled rows gave their reservations back. Add-on
// units exclude cancelled rows the same way, while the consumption ledger
// nets itself out through its compensating entries.
func (s *Service) recomputeBucket(ctx context.Context, tx *gorm.DB, b bucket) error {
	dayStart, err := time.ParseInLocation(dashboard.DayFormat, b.Day, time.UTC)
	if err != nil {
		return fmt.Errorf("parse rollup day %q: %w", b.Day, err)
	}
	dayEnd := dayStart.AddDate(0, 0, 1)

	var stats statsRow
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) AS registrations,
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS confirmed,
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending,
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS cancelled,
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS waitlisted,
		        COALESCE(SUM(CASE WHEN status IN (?, ?) THEN total_amount ELSE 0 END), 0) AS revenue
		 FROM registrations
		 WHERE org_id = ? AND event_id = ? AND created_at >= ? AND created_at < ?`,
		registrationdomain.StatusConfirmed,
		registrationdomain.StatusPending,
		registrationdomain.StatusCancelled,
		registrationdomain.StatusWaitlisted,
		registrationdomain.StatusConfirmed,
		registrationdomain.StatusPending,
		b.OrgID,
		b.EventID,
		dayStart,
		dayEnd,
	).Scan(&stats).Error; err != nil {
		return err
	}

	var units unitsRow
	if err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(ra.quantity), 0) AS units
		 FROM registration_add_ons ra
		 JOIN registrations r ON r.id = ra.registration_id
		 WHERE r.org_id = ? AND r.event_id = ? AND r.created_at >= ? AND r.created_at < ? AND r.status <> ?`,
		b.OrgID,
		b.EventID,
		dayStart,
		dayEnd,
		registrationdomain.StatusCancelled,
	).Scan(&units).Error; err != nil {
		return err
	}

	var applied appliedRow
	if err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(sc.amount), 0) AS applied
		 FROM sponsorship_consumptions sc
		 JOIN registrations r ON r.id = sc.registration_id
		 WHERE r.org_id = ? AND r.event_id = ? AND r.created_at >= ? AND r.created_at < ?`,
		b.OrgID,
		b.EventID,
		dayStart,
		dayEnd,
	).Scan(&applied).Error; err != nil {
		return err
	}

	now := time.Now().UTC()
	return tx.WithContext(ctx).Exec(
		`INSERT INTO event_stat_rollups (org_id, event_id, day, registrations, confirmed, pending, cancelled, waitlisted, revenue, sponsorship_applied, add_on_units, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (org_id, event_id, day)
		 DO UPDATE SET registrations = EXCLUDED.registrations,
		               confirmed = EXCLUDED.confirmed,
		               pending = EXCLUDED.pending,
		               cancelled = EXCLUDED.cancelled,
		               waitlisted = EXCLUDED.waitlisted,
		               revenue = EXCLUDED.revenue,
		               sponsorship_applied = EXCLUDED.sponsorship_applied,
		               add_on_units = EXCLUDED.add_on_units,
		               updated_at = EXCLUDED.updated_at`,
		b.OrgID,
		b.EventID,
		b.Day,
		stats.Registrations,
		stats.Confirmed,
		stats.Pending,
		stats.Cancelled,
		stats.Waitlisted,
		stats.Revenue,
		applied.Applied,
		units.Units,
		now,
	).Error
}
