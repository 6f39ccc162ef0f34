package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	EventID snowflake.ID
	Status  Status
	Search  string
	From    *time.Time
	To      *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, registration *Registration) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Registration, error)
	FindByConfirmationCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) (*Registration, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]Registration, error)

	// UpdateStatus flips status only when the current one is in from. It
	// reports whether a row changed.
	UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, from []Status, to Status, cancelledAt *time.Time) (bool, error)

	SetReceipt(ctx context.Context, db *gorm.DB, orgID, id, receiptID snowflake.ID) error

	InsertAddOns(ctx context.Context, db *gorm.DB, addOns []RegistrationAddOn) error
	ListAddOns(ctx context.Context, db *gorm.DB, orgID, registrationID snowflake.ID) ([]RegistrationAddOn, error)

	FindSettings(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*RegistrationSettings, error)
	UpsertSettings(ctx context.Context, db *gorm.DB, settings *RegistrationSettings) error

	// CountByEventAndStatus backs capacity checks for the waitlist decision
	// and dashboard counts.
	CountByEventAndStatus(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID, statuses []Status) (int64, error)
}
