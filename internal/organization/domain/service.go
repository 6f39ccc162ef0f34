package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateOrganizationRequest) (*OrganizationResponse, error)
	GetByID(ctx context.Context, id string) (*OrganizationResponse, error)
	GetBySlug(ctx context.Context, slug string) (*OrganizationResponse, error)
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListResponseItem, error)
	ListMembers(ctx context.Context, orgID string) ([]MemberResponse, error)
	UpdateMemberRole(ctx context.Context, actorID snowflake.ID, orgID, memberID string, role Role) error
	RemoveMember(ctx context.Context, actorID snowflake.ID, orgID, memberID string) error
	InviteMembers(ctx context.Context, userID snowflake.ID, orgID string, invites []InviteRequest) error
	ListInvites(ctx context.Context, orgID string) ([]InviteResponse, error)
	AcceptInvite(ctx context.Context, userID snowflake.ID, inviteID string) error
	RevokeInvite(ctx context.Context, actorID snowflake.ID, orgID, inviteID string) error
}

type CreateOrganizationRequest struct {
	Name            string
	CountryCode     string
	TimezoneName    string
	DefaultCurrency string
	SupportEmail    string
}

type InviteRequest struct {
	Email string
	Role  Role
}

type OrganizationResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	SupportEmail    string `json:"support_email,omitempty"`
	CountryCode     string `json:"country_code"`
	TimezoneName    string `json:"timezone_name"`
	DefaultCurrency string `json:"default_currency"`
}

type OrganizationListResponseItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type MemberResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type InviteResponse struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	Role      Role         `json:"role"`
	Status    InviteStatus `json:"status"`
	InvitedBy string       `json:"invited_by"`
	CreatedAt time.Time    `json:"created_at"`
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidCountry      = errors.New("invalid_country")
	ErrInvalidTimezone     = errors.New("invalid_timezone")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("organization_not_found")
	ErrMemberNotFound      = errors.New("member_not_found")
	ErrLastOwner           = errors.New("last_owner")
	ErrInviteNotFound      = errors.New("invite_not_found")
	ErrInviteNotPending    = errors.New("invite_not_pending")
)
