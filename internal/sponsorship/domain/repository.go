package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, batch *SponsorshipBatch) error
	FindBatchByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*SponsorshipBatch, error)
	ListBatches(ctx context.Context, db *gorm.DB, orgID snowflake.ID, eventID, clientID snowflake.ID) ([]SponsorshipBatch, error)

	BatchInsertRecords(ctx context.Context, db *gorm.DB, records []SponsorshipRecord) error
	FindRecordByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*SponsorshipRecord, error)

	// FindRecordByCode expects the code already uppercased.
	FindRecordByCode(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID, code string) (*SponsorshipRecord, error)
	ListRecords(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListRecordFilter, page pagination.Pagination) ([]SponsorshipRecord, error)

	// TransitionRecord flips status when the current one is in from. It
	// reports whether a row changed.
	TransitionRecord(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, from []engine.SponsorshipStatus, to engine.SponsorshipStatus) (bool, error)

	// TransitionBatch applies the same flip to every record of the batch and
	// returns the number of rows changed.
	TransitionBatch(ctx context.Context, db *gorm.DB, orgID, batchID snowflake.ID, from []engine.SponsorshipStatus, to engine.SponsorshipStatus) (int64, error)

	// Redeem conditionally consumes amount from the record: it only wins when
	// the record is PENDING or ACTIVE and has balance for the full amount.
	// On success the status moves to ACTIVE, or CONSUMED when exhausted, and
	// the registration link is set.
	Redeem(ctx context.Context, db *gorm.DB, orgID, recordID, registrationID snowflake.ID, amount int64) (bool, error)

	// Restore gives amount back to a record after a cancelled registration.
	// CONSUMED flips back to ACTIVE; terminal CANCELLED/EXPIRED keep their
	// status but regain balance.
	Restore(ctx context.Context, db *gorm.DB, orgID, recordID snowflake.ID, amount int64) error

	// ClearRegistration detaches every record linked to the registration.
	ClearRegistration(ctx context.Context, db *gorm.DB, orgID, registrationID snowflake.ID) error

	InsertConsumption(ctx context.Context, db *gorm.DB, consumption *SponsorshipConsumption) error
	ListConsumptionsByRegistration(ctx context.Context, db *gorm.DB, orgID, registrationID snowflake.ID) ([]SponsorshipConsumption, error)

	BatchStats(ctx context.Context, db *gorm.DB, orgID, batchID snowflake.ID) (issued, consumed int64, totalAmount, consumedAmount int64, err error)
	ExpireDue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}
