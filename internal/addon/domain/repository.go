package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *AddOnItem) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*AddOnItem, error)
	Update(ctx context.Context, db *gorm.DB, item *AddOnItem) error
	ListByEvent(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID, active *bool) ([]AddOnItem, error)

	// ReserveCapacity atomically increments registered_count by qty while the
	// item is active and has room. It reports whether the reservation won.
	ReserveCapacity(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, qty int64) (bool, error)

	// ReleaseCapacity decrements registered_count by qty, flooring at zero.
	ReleaseCapacity(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, qty int64) error
}
