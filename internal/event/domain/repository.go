package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Event, error)
	FindBySlug(ctx context.Context, db *gorm.DB, orgID snowflake.ID, slug string) (*Event, error)
	Update(ctx context.Context, db *gorm.DB, event *Event) error
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListEventFilter, page pagination.Pagination) ([]Event, error)

	// ReserveCapacity atomically increments registered_count by qty when the
	// event is published and has room. It reports whether the reservation won.
	ReserveCapacity(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, qty int64) (bool, error)

	// ReleaseCapacity decrements registered_count by qty, flooring at zero.
	ReleaseCapacity(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, qty int64) error
}
