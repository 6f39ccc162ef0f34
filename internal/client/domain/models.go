package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Client is a company or person events are organized for. Sponsorship
// batches reference a client as the sponsor footing the credit.
type Client struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID      `gorm:"not null;index" json:"organization_id"`
	Name         string            `gorm:"not null" json:"name"`
	ContactName  string            `gorm:"column:contact_name" json:"contact_name,omitempty"`
	ContactEmail string            `gorm:"column:contact_email" json:"contact_email,omitempty"`
	ContactPhone string            `gorm:"column:contact_phone" json:"contact_phone,omitempty"`
	Website      string            `gorm:"column:website" json:"website,omitempty"`
	Notes        string            `gorm:"column:notes" json:"notes,omitempty"`
	Active       bool              `gorm:"not null;default:true" json:"active"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
