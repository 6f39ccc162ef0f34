package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/addon/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, item *domain.AddOnItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO add_on_items (id, org_id, event_id, name, description, unit_price, currency, max_capacity, registered_count, conditions, condition_logic, active, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.OrgID,
		item.EventID,
		item.Name,
		item.Description,
		item.UnitPrice,
		item.Currency,
		item.MaxCapacity,
		item.RegisteredCount,
		item.Conditions,
		item.ConditionLogic,
		item.Active,
		item.Position,
		item.CreatedAt,
		item.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.AddOnItem, error) {
	var item domain.AddOnItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, event_id, name, description, unit_price, currency, max_capacity, registered_count, conditions, condition_logic, active, position, created_at, updated_at
		 FROM add_on_items WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, item *domain.AddOnItem) error {
	return db.WithContext(ctx).Exec(
		`UPDATE add_on_items
		 SET name = ?, description = ?, unit_price = ?, currency = ?, max_capacity = ?, conditions = ?, condition_logic = ?, active = ?, position = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		item.Name,
		item.Description,
		item.UnitPrice,
		item.Currency,
		item.MaxCapacity,
		item.Conditions,
		item.ConditionLogic,
		item.Active,
		item.Position,
		item.UpdatedAt,
		item.OrgID,
		item.ID,
	).Error
}

func (r *repo) ListByEvent(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID, active *bool) ([]domain.AddOnItem, error) {
	var items []domain.AddOnItem
	stmt := db.WithContext(ctx).
		Model(&domain.AddOnItem{}).
		Where("org_id = ? AND event_id = ?", orgID, eventID)
	if active != nil {
		stmt = stmt.Where("active = ?", *active)
	}
	if err := stmt.Order("position asc, id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ReserveCapacity(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, qty int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE add_on_items
		 SET registered_count = registered_count + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND id = ? AND active = ?
		   AND (max_capacity IS NULL OR registered_count + ? <= max_capacity)`,
		qty,
		orgID,
		id,
		true,
		qty,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ReleaseCapacity(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, qty int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE add_on_items
		 SET registered_count = CASE WHEN registered_count >= ? THEN registered_count - ? ELSE 0 END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND id = ?`,
		qty,
		qty,
		orgID,
		id,
	).Error
}
