package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/event/domain"
	"github.com/smallbiznis/eventra/pkg/db/option"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO events (id, org_id, client_id, title, slug, description, location, timezone, starts_at, ends_at, status, max_capacity, registered_count, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.OrgID,
		event.ClientID,
		event.Title,
		event.Slug,
		event.Description,
		event.Location,
		event.Timezone,
		event.StartsAt,
		event.EndsAt,
		event.Status,
		event.MaxCapacity,
		event.RegisteredCount,
		event.Metadata,
		event.CreatedAt,
		event.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Event, error) {
	var event domain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, client_id, title, slug, description, location, timezone, starts_at, ends_at, status, max_capacity, registered_count, metadata, created_at, updated_at
		 FROM events WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, orgID snowflake.ID, slug string) (*domain.Event, error) {
	var event domain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, client_id, title, slug, description, location, timezone, starts_at, ends_at, status, max_capacity, registered_count, metadata, created_at, updated_at
		 FROM events WHERE org_id = ? AND slug = ?`,
		orgID,
		slug,
	).Scan(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	return db.WithContext(ctx).Exec(
		`UPDATE events
		 SET client_id = ?, title = ?, slug = ?, description = ?, location = ?, timezone = ?, starts_at = ?, ends_at = ?, status = ?, max_capacity = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		event.ClientID,
		event.Title,
		event.Slug,
		event.Description,
		event.Location,
		event.Timezone,
		event.StartsAt,
		event.EndsAt,
		event.Status,
		event.MaxCapacity,
		event.UpdatedAt,
		event.OrgID,
		event.ID,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListEventFilter, page pagination.Pagination) ([]domain.Event, error) {
	var events []domain.Event
	stmt := db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("org_id = ?", orgID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.ClientID != "" {
		stmt = stmt.Where("client_id = ?", filter.ClientID)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		stmt = stmt.Where("(title LIKE ? OR slug LIKE ?)", like, like)
	}
	if filter.StartsFrom != nil {
		stmt = stmt.Where("starts_at >= ?", *filter.StartsFrom)
	}
	if filter.StartsTo != nil {
		stmt = stmt.Where("starts_at <= ?", *filter.StartsTo)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) ReserveCapacity(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, qty int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE events
		 SET registered_count = registered_count + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND id = ? AND status = ?
		   AND (max_capacity IS NULL OR registered_count + ? <= max_capacity)`,
		qty,
		orgID,
		id,
		domain.EventPublished,
		qty,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ReleaseCapacity(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, qty int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE events
		 SET registered_count = CASE WHEN registered_count >= ? THEN registered_count - ? ELSE 0 END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND id = ?`,
		qty,
		qty,
		orgID,
		id,
	).Error
}
