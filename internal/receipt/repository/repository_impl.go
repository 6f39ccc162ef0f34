package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/receipt/domain"
	"github.com/smallbiznis/eventra/pkg/db/option"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, receipt *domain.Receipt) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO receipts (id, org_id, registration_id, event_id, number, event_name, attendee_name, attendee_email, currency, amount_total, line_items, issued_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (registration_id) DO NOTHING`,
		receipt.ID,
		receipt.OrgID,
		receipt.RegistrationID,
		receipt.EventID,
		receipt.Number,
		receipt.EventName,
		receipt.AttendeeName,
		receipt.AttendeeEmail,
		receipt.Currency,
		receipt.AmountTotal,
		receipt.LineItems,
		receipt.IssuedAt,
		receipt.CreatedAt,
		receipt.UpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, registration_id, event_id, number, event_name, attendee_name, attendee_email, currency, amount_total, line_items, issued_at, created_at, updated_at
		 FROM receipts WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&receipt).Error
	if err != nil {
		return nil, err
	}
	if receipt.ID == 0 {
		return nil, nil
	}
	return &receipt, nil
}

func (r *repo) FindByRegistration(ctx context.Context, db *gorm.DB, orgID, registrationID snowflake.ID) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, registration_id, event_id, number, event_name, attendee_name, attendee_email, currency, amount_total, line_items, issued_at, created_at, updated_at
		 FROM receipts WHERE org_id = ? AND registration_id = ?`,
		orgID,
		registrationID,
	).Scan(&receipt).Error
	if err != nil {
		return nil, err
	}
	if receipt.ID == 0 {
		return nil, nil
	}
	return &receipt, nil
}

func (r *repo) ListByEvent(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID, page pagination.Pagination) ([]domain.Receipt, error) {
	receipts := make([]domain.Receipt, 0)
	stmt := db.WithContext(ctx).
		Model(&domain.Receipt{}).
		Where("org_id = ?", orgID).
		Where("event_id = ?", eventID)
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, orgID snowflake.ID, year int) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE receipt_counters
		 SET value = value + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND year = ?`,
		orgID,
		year,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO receipt_counters (org_id, year, value, updated_at)
			 VALUES (?, ?, 1, CURRENT_TIMESTAMP)`,
			orgID,
			year,
		).Error
		if err != nil {
			return 0, err
		}
		return 1, nil
	}

	// The update above holds the row lock, so the read-back is stable for
	// the rest of the transaction.
	var value int64
	err := db.WithContext(ctx).Raw(
		`SELECT value FROM receipt_counters WHERE org_id = ? AND year = ?`,
		orgID,
		year,
	).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}
