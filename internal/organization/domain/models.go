// Package domain contains persistence models for the org service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Role is an organization-scoped membership role.
type Role string

const (
	RoleOwner     Role = "OWNER"
	RoleAdmin     Role = "ADMIN"
	RoleOrganizer Role = "ORGANIZER" // events, forms, pricing, sponsorships
	RoleFinance   Role = "FINANCE"   // receipts, dashboards, exports
	RoleMember    Role = "MEMBER"    // read-only
)

// ValidRole reports whether r is an assignable role.
func ValidRole(r Role) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleOrganizer, RoleFinance, RoleMember:
		return true
	default:
		return false
	}
}

// InviteStatus tracks an invite through its lifecycle.
type InviteStatus string

const (
	InvitePending  InviteStatus = "PENDING"
	InviteAccepted InviteStatus = "ACCEPTED"
	InviteRevoked  InviteStatus = "REVOKED"
)

// Organization represents a tenant. DefaultCurrency seeds the registration
// settings row at provisioning time.
type Organization struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name            string            `gorm:"type:text;not null" json:"name"`
	Slug            string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	SupportEmail    string            `gorm:"type:text;column:support_email" json:"support_email"`
	IsDefault       bool              `gorm:"column:is_default" json:"is_default"`
	CountryCode     string            `gorm:"column:country_code" json:"country_code"`
	TimezoneName    string            `gorm:"column:timezone_name" json:"timezone_name"`
	DefaultCurrency string            `gorm:"type:text;column:default_currency" json:"default_currency"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// OrganizationMember represents membership of a user in an organization.
type OrganizationMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:1" json:"org_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:2" json:"user_id"`
	Role      Role         `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }

// OrganizationInvite tracks a pending invite to an organization. The invite
// id doubles as the acceptance token carried in the email link.
type OrganizationInvite struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	Email     string       `gorm:"type:text;not null" json:"email"`
	Role      Role         `gorm:"type:text;not null" json:"role"`
	Status    InviteStatus `gorm:"type:text;not null" json:"status"`
	InvitedBy snowflake.ID `gorm:"column:invited_by;not null;index" json:"invited_by"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationInvite) TableName() string { return "organization_invites" }
