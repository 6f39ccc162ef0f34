package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/alert/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindCandidates(ctx context.Context, db *gorm.DB, thresholdPct float64, limit int) ([]domain.Candidate, error) {
	var candidates []domain.Candidate
	err := db.WithContext(ctx).Raw(
		`SELECT e.id AS event_id, e.org_id, e.title, e.max_capacity, e.registered_count
		 FROM events e
		 WHERE e.status = 'PUBLISHED'
		   AND e.max_capacity IS NOT NULL AND e.max_capacity > 0
		   AND e.registered_count * 100.0 >= e.max_capacity * ?
		   AND NOT EXISTS (
		       SELECT 1 FROM capacity_alerts a
		       WHERE a.event_id = e.id AND a.status = ?
		   )
		 ORDER BY e.id ASC
		 LIMIT ?`,
		thresholdPct,
		domain.AlertActive,
		limit,
	).Scan(&candidates).Error
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

func (r *repo) Raise(ctx context.Context, db *gorm.DB, alert *domain.CapacityAlert) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO capacity_alerts (id, org_id, event_id, threshold_pct, max_capacity, registered_count, status, raised_at, created_at, updated_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE NOT EXISTS (
		     SELECT 1 FROM capacity_alerts
		     WHERE event_id = ? AND status = ?
		 )`,
		alert.ID,
		alert.OrgID,
		alert.EventID,
		alert.ThresholdPct,
		alert.MaxCapacity,
		alert.RegisteredCount,
		domain.AlertActive,
		alert.RaisedAt,
		alert.CreatedAt,
		alert.UpdatedAt,
		alert.EventID,
		domain.AlertActive,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ResolveRecovered(ctx context.Context, db *gorm.DB, thresholdPct float64, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE capacity_alerts
		 SET status = ?, resolved_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE status = ?
		   AND NOT EXISTS (
		       SELECT 1 FROM events e
		       WHERE e.id = capacity_alerts.event_id
		         AND e.status = 'PUBLISHED'
		         AND e.max_capacity IS NOT NULL AND e.max_capacity > 0
		         AND e.registered_count * 100.0 >= e.max_capacity * ?
		   )`,
		domain.AlertResolved,
		now,
		domain.AlertActive,
		thresholdPct,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) ListActiveByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.AlertListItem, error) {
	var items []domain.AlertListItem
	err := db.WithContext(ctx).Raw(
		`SELECT a.id, a.event_id, e.title AS event_title, a.threshold_pct, a.max_capacity, a.registered_count, a.status, a.raised_at, a.resolved_at
		 FROM capacity_alerts a
		 JOIN events e ON e.id = a.event_id
		 WHERE a.org_id = ? AND a.status = ?
		 ORDER BY a.raised_at DESC, a.id DESC`,
		orgID,
		domain.AlertActive,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
