package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, client *Client) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Client, error)
	Update(ctx context.Context, db *gorm.DB, client *Client) error
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListClientFilter, page pagination.Pagination) ([]*Client, error)
}
