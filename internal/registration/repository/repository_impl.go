package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/registration/domain"
	"github.com/smallbiznis/eventra/pkg/db/option"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, registration *domain.Registration) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO registrations (id, org_id, event_id, form_id, attendee_name, attendee_email, form_data, status, breakdown, total_amount, currency, sponsorship_codes, confirmation_code, receipt_id, cancelled_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		registration.ID,
		registration.OrgID,
		registration.EventID,
		registration.FormID,
		registration.AttendeeName,
		registration.AttendeeEmail,
		registration.FormData,
		registration.Status,
		registration.Breakdown,
		registration.TotalAmount,
		registration.Currency,
		registration.SponsorshipCodes,
		registration.ConfirmationCode,
		registration.ReceiptID,
		registration.CancelledAt,
		registration.CreatedAt,
		registration.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Registration, error) {
	var registration domain.Registration
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, event_id, form_id, attendee_name, attendee_email, form_data, status, breakdown, total_amount, currency, sponsorship_codes, confirmation_code, receipt_id, cancelled_at, created_at, updated_at
		 FROM registrations WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&registration).Error
	if err != nil {
		return nil, err
	}
	if registration.ID == 0 {
		return nil, nil
	}
	return &registration, nil
}

func (r *repo) FindByConfirmationCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) (*domain.Registration, error) {
	var registration domain.Registration
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, event_id, form_id, attendee_name, attendee_email, form_data, status, breakdown, total_amount, currency, sponsorship_codes, confirmation_code, receipt_id, cancelled_at, created_at, updated_at
		 FROM registrations WHERE org_id = ? AND confirmation_code = ?`,
		orgID,
		code,
	).Scan(&registration).Error
	if err != nil {
		return nil, err
	}
	if registration.ID == 0 {
		return nil, nil
	}
	return &registration, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]domain.Registration, error) {
	registrations := make([]domain.Registration, 0)
	stmt := db.WithContext(ctx).
		Model(&domain.Registration{}).
		Where("org_id = ?", orgID)
	if filter.EventID != 0 {
		stmt = stmt.Where("event_id = ?", filter.EventID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		stmt = stmt.Where("(attendee_name LIKE ? OR attendee_email LIKE ? OR confirmation_code LIKE ?)", like, like, like)
	}
	if filter.From != nil {
		stmt = stmt.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("created_at < ?", *filter.To)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&registrations).Error
	if err != nil {
		return nil, err
	}
	return registrations, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, from []domain.Status, to domain.Status, cancelledAt *time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE registrations
		 SET status = ?, cancelled_at = COALESCE(?, cancelled_at), updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND id = ? AND status IN ?`,
		to,
		cancelledAt,
		orgID,
		id,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SetReceipt(ctx context.Context, db *gorm.DB, orgID, id, receiptID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE registrations SET receipt_id = ?, updated_at = CURRENT_TIMESTAMP WHERE org_id = ? AND id = ?`,
		receiptID,
		orgID,
		id,
	).Error
}

func (r *repo) InsertAddOns(ctx context.Context, db *gorm.DB, addOns []domain.RegistrationAddOn) error {
	if len(addOns) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(addOns, 100).Error
}

func (r *repo) ListAddOns(ctx context.Context, db *gorm.DB, orgID, registrationID snowflake.ID) ([]domain.RegistrationAddOn, error) {
	addOns := make([]domain.RegistrationAddOn, 0)
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, registration_id, event_id, add_on_id, name, quantity, unit_price, subtotal, created_at
		 FROM registration_add_ons WHERE org_id = ? AND registration_id = ? ORDER BY id ASC`,
		orgID,
		registrationID,
	).Scan(&addOns).Error
	if err != nil {
		return nil, err
	}
	return addOns, nil
}

func (r *repo) FindSettings(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*domain.RegistrationSettings, error) {
	var settings domain.RegistrationSettings
	err := db.WithContext(ctx).Raw(
		`SELECT org_id, require_review, waitlist_enabled, default_currency, receipt_number_pattern, created_at, updated_at
		 FROM registration_settings WHERE org_id = ?`,
		orgID,
	).Scan(&settings).Error
	if err != nil {
		return nil, err
	}
	if settings.OrgID == 0 {
		return nil, nil
	}
	return &settings, nil
}

func (r *repo) UpsertSettings(ctx context.Context, db *gorm.DB, settings *domain.RegistrationSettings) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO registration_settings (org_id, require_review, waitlist_enabled, default_currency, receipt_number_pattern, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		 ON CONFLICT (org_id) DO UPDATE SET
		   require_review = excluded.require_review,
		   waitlist_enabled = excluded.waitlist_enabled,
		   default_currency = excluded.default_currency,
		   receipt_number_pattern = excluded.receipt_number_pattern,
		   updated_at = CURRENT_TIMESTAMP`,
		settings.OrgID,
		settings.RequireReview,
		settings.WaitlistEnabled,
		settings.DefaultCurrency,
		settings.ReceiptNumberPattern,
	).Error
}

func (r *repo) CountByEventAndStatus(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID, statuses []domain.Status) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM registrations WHERE org_id = ? AND event_id = ? AND status IN ?`,
		orgID,
		eventID,
		statuses,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
