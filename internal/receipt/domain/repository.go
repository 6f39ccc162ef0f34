package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert writes the receipt and reports whether a row was created. A
	// false return means a receipt already exists for the registration.
	Insert(ctx context.Context, db *gorm.DB, receipt *Receipt) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Receipt, error)
	FindByRegistration(ctx context.Context, db *gorm.DB, orgID, registrationID snowflake.ID) (*Receipt, error)
	ListByEvent(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID, page pagination.Pagination) ([]Receipt, error)

	// NextSequence locks and increments the per-org counter for the given
	// year, creating it on first use. Must run inside the issuing
	// transaction so the number is released on rollback.
	NextSequence(ctx context.Context, db *gorm.DB, orgID snowflake.ID, year int) (int64, error)
}
