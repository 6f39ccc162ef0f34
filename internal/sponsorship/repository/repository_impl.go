package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"github.com/smallbiznis/eventra/internal/sponsorship/domain"
	"github.com/smallbiznis/eventra/pkg/db/option"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, batch *domain.SponsorshipBatch) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sponsorship_batches (id, org_id, event_id, client_id, name, code_prefix, quantity, amount_per_code, currency, coverage, covered_add_on_ids, expires_at, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.ID,
		batch.OrgID,
		batch.EventID,
		batch.ClientID,
		batch.Name,
		batch.CodePrefix,
		batch.Quantity,
		batch.AmountPerCode,
		batch.Currency,
		batch.Coverage,
		batch.CoveredAddOnIDs,
		batch.ExpiresAt,
		batch.Notes,
		batch.CreatedAt,
		batch.UpdatedAt,
	).Error
}

func (r *repo) FindBatchByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.SponsorshipBatch, error) {
	var batch domain.SponsorshipBatch
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, event_id, client_id, name, code_prefix, quantity, amount_per_code, currency, coverage, covered_add_on_ids, expires_at, notes, created_at, updated_at
		 FROM sponsorship_batches WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&batch).Error
	if err != nil {
		return nil, err
	}
	if batch.ID == 0 {
		return nil, nil
	}
	return &batch, nil
}

func (r *repo) ListBatches(ctx context.Context, db *gorm.DB, orgID snowflake.ID, eventID, clientID snowflake.ID) ([]domain.SponsorshipBatch, error) {
	var batches []domain.SponsorshipBatch
	stmt := db.WithContext(ctx).
		Model(&domain.SponsorshipBatch{}).
		Where("org_id = ?", orgID)
	if eventID != 0 {
		stmt = stmt.Where("event_id = ?", eventID)
	}
	if clientID != 0 {
		stmt = stmt.Where("client_id = ?", clientID)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repo) BatchInsertRecords(ctx context.Context, db *gorm.DB, records []domain.SponsorshipRecord) error {
	if len(records) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(records, 500).Error
}

func (r *repo) FindRecordByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.SponsorshipRecord, error) {
	var record domain.SponsorshipRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, batch_id, event_id, code, status, total_amount, consumed_amount, registration_id, expires_at, created_at, updated_at
		 FROM sponsorship_records WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindRecordByCode(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID, code string) (*domain.SponsorshipRecord, error) {
	var record domain.SponsorshipRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, batch_id, event_id, code, status, total_amount, consumed_amount, registration_id, expires_at, created_at, updated_at
		 FROM sponsorship_records WHERE org_id = ? AND event_id = ? AND code = ?`,
		orgID,
		eventID,
		code,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) ListRecords(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListRecordFilter, page pagination.Pagination) ([]domain.SponsorshipRecord, error) {
	var records []domain.SponsorshipRecord
	stmt := db.WithContext(ctx).
		Model(&domain.SponsorshipRecord{}).
		Where("org_id = ?", orgID)
	if filter.BatchID != 0 {
		stmt = stmt.Where("batch_id = ?", filter.BatchID)
	}
	if filter.EventID != 0 {
		stmt = stmt.Where("event_id = ?", filter.EventID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Code != "" {
		stmt = stmt.Where("code LIKE ?", "%"+filter.Code+"%")
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) TransitionRecord(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, from []engine.SponsorshipStatus, to engine.SponsorshipStatus) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE sponsorship_records
		 SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND id = ? AND status IN ?`,
		to,
		orgID,
		id,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) TransitionBatch(ctx context.Context, db *gorm.DB, orgID, batchID snowflake.ID, from []engine.SponsorshipStatus, to engine.SponsorshipStatus) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE sponsorship_records
		 SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND batch_id = ? AND status IN ?`,
		to,
		orgID,
		batchID,
		from,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) Redeem(ctx context.Context, db *gorm.DB, orgID, recordID, registrationID snowflake.ID, amount int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE sponsorship_records
		 SET consumed_amount = consumed_amount + ?,
		     status = CASE WHEN consumed_amount + ? >= total_amount THEN ? ELSE ? END,
		     registration_id = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND id = ?
		   AND status IN ?
		   AND consumed_amount + ? <= total_amount`,
		amount,
		amount,
		engine.SponsorshipConsumed,
		engine.SponsorshipActive,
		registrationID,
		orgID,
		recordID,
		[]engine.SponsorshipStatus{engine.SponsorshipPending, engine.SponsorshipActive},
		amount,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Restore(ctx context.Context, db *gorm.DB, orgID, recordID snowflake.ID, amount int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE sponsorship_records
		 SET consumed_amount = CASE WHEN consumed_amount >= ? THEN consumed_amount - ? ELSE 0 END,
		     status = CASE WHEN status = ? THEN ? ELSE status END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND id = ?`,
		amount,
		amount,
		engine.SponsorshipConsumed,
		engine.SponsorshipActive,
		orgID,
		recordID,
	).Error
}

func (r *repo) ClearRegistration(ctx context.Context, db *gorm.DB, orgID, registrationID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE sponsorship_records
		 SET registration_id = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND registration_id = ?`,
		orgID,
		registrationID,
	).Error
}

func (r *repo) InsertConsumption(ctx context.Context, db *gorm.DB, consumption *domain.SponsorshipConsumption) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sponsorship_consumptions (id, org_id, record_id, registration_id, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		consumption.ID,
		consumption.OrgID,
		consumption.RecordID,
		consumption.RegistrationID,
		consumption.Amount,
		consumption.CreatedAt,
	).Error
}

func (r *repo) ListConsumptionsByRegistration(ctx context.Context, db *gorm.DB, orgID, registrationID snowflake.ID) ([]domain.SponsorshipConsumption, error) {
	var consumptions []domain.SponsorshipConsumption
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, record_id, registration_id, amount, created_at
		 FROM sponsorship_consumptions
		 WHERE org_id = ? AND registration_id = ?
		 ORDER BY created_at ASC, id ASC`,
		orgID,
		registrationID,
	).Scan(&consumptions).Error
	if err != nil {
		return nil, err
	}
	return consumptions, nil
}

func (r *repo) BatchStats(ctx context.Context, db *gorm.DB, orgID, batchID snowflake.ID) (int64, int64, int64, int64, error) {
	var row struct {
		Issued         int64 `gorm:"column:issued"`
		Consumed       int64 `gorm:"column:consumed"`
		TotalAmount    int64 `gorm:"column:total_amount"`
		ConsumedAmount int64 `gorm:"column:consumed_amount"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) AS issued,
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS consumed,
		        COALESCE(SUM(total_amount), 0) AS total_amount,
		        COALESCE(SUM(consumed_amount), 0) AS consumed_amount
		 FROM sponsorship_records WHERE org_id = ? AND batch_id = ?`,
		engine.SponsorshipConsumed,
		orgID,
		batchID,
	).Scan(&row).Error
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return row.Issued, row.Consumed, row.TotalAmount, row.ConsumedAmount, nil
}

func (r *repo) ExpireDue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE sponsorship_records
		 SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE status IN ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		engine.SponsorshipExpired,
		[]engine.SponsorshipStatus{engine.SponsorshipPending, engine.SponsorshipActive},
		now,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
