package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/client/domain"
	"github.com/smallbiznis/eventra/pkg/db/option"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO clients (id, org_id, name, contact_name, contact_email, contact_phone, website, notes, active, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID,
		client.OrgID,
		client.Name,
		client.ContactName,
		client.ContactEmail,
		client.ContactPhone,
		client.Website,
		client.Notes,
		client.Active,
		client.Metadata,
		client.CreatedAt,
		client.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, contact_name, contact_email, contact_phone, website, notes, active, metadata, created_at, updated_at
		 FROM clients WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`UPDATE clients
		 SET name = ?, contact_name = ?, contact_email = ?, contact_phone = ?, website = ?, notes = ?, active = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		client.Name,
		client.ContactName,
		client.ContactEmail,
		client.ContactPhone,
		client.Website,
		client.Notes,
		client.Active,
		client.UpdatedAt,
		client.OrgID,
		client.ID,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListClientFilter, page pagination.Pagination) ([]*domain.Client, error) {
	var clients []*domain.Client
	stmt := db.WithContext(ctx).
		Model(&domain.Client{}).
		Where("org_id = ?", orgID)
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		stmt = stmt.Where("(name LIKE ? OR contact_name LIKE ? OR contact_email LIKE ?)", like, like, like)
	}
	if filter.Active != nil {
		stmt = stmt.Where("active = ?", *filter.Active)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedTo)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}
