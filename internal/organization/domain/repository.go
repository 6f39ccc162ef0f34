package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type OrganizationListItem struct {
	ID        snowflake.ID
	Name      string
	Slug      string
	Role      Role
	CreatedAt time.Time
}

// MemberListItem joins membership rows with the owning user record.
type MemberListItem struct {
	ID        snowflake.ID
	UserID    snowflake.ID
	Username  string
	Email     string
	Role      Role
	CreatedAt time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org Organization) error
	FindByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	FindBySlug(ctx context.Context, slug string) (*Organization, error)
	AddMember(ctx context.Context, member OrganizationMember) error
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListItem, error)
	IsMember(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (bool, error)
	GetMember(ctx context.Context, orgID snowflake.ID, memberID snowflake.ID) (*OrganizationMember, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]MemberListItem, error)
	UpdateMemberRole(ctx context.Context, memberID snowflake.ID, role Role) (bool, error)
	RemoveMember(ctx context.Context, memberID snowflake.ID) (bool, error)
	CountOwners(ctx context.Context, orgID snowflake.ID) (int64, error)
	CreateInvites(ctx context.Context, invites []OrganizationInvite) error
	GetInvite(ctx context.Context, inviteID snowflake.ID) (*OrganizationInvite, error)
	ListInvites(ctx context.Context, orgID snowflake.ID) ([]OrganizationInvite, error)
	UpdateInviteStatus(ctx context.Context, inviteID snowflake.ID, from, to InviteStatus) (bool, error)
}
