package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/organization/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organizations (id, name, slug, support_email, country_code, timezone_name, default_currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		org.ID,
		org.Name,
		org.Slug,
		org.SupportEmail,
		org.CountryCode,
		org.TimezoneName,
		org.DefaultCurrency,
		org.CreatedAt,
		org.CreatedAt,
	).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM organizations WHERE id = ?`,
		id,
	).Scan(&org).Error
	if err != nil {
		return nil, err
	}

	if org.ID == 0 {
		return nil, nil
	}

	return &org, nil
}

func (r *repository) FindBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM organizations WHERE slug = ?`,
		slug,
	).Scan(&org).Error
	if err != nil {
		return nil, err
	}

	if org.ID == 0 {
		return nil, nil
	}

	return &org, nil
}

func (r *repository) AddMember(ctx context.Context, member domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organization_members (id, org_id, user_id, role, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		member.ID,
		member.OrgID,
		member.UserID,
		member.Role,
		member.CreatedAt,
	).Error
}

func (r *repository) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	var items []domain.OrganizationListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.slug, m.role, o.created_at
		 FROM organizations o
		 JOIN organization_members m ON m.org_id = o.id
		 WHERE m.user_id = ?
		 ORDER BY o.created_at ASC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *repository) IsMember(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM organization_members WHERE org_id = ? AND user_id = ?`,
		orgID,
		userID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *repository) GetMember(ctx context.Context, orgID snowflake.ID, memberID snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM organization_members WHERE id = ? AND org_id = ?`,
		memberID,
		orgID,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}

	if member.ID == 0 {
		return nil, nil
	}

	return &member, nil
}

func (r *repository) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.MemberListItem, error) {
	var items []domain.MemberListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.id, m.user_id, u.display_name AS username, u.email, m.role, m.created_at
		 FROM organization_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.org_id = ?
		 ORDER BY m.created_at ASC, m.id ASC`,
		orgID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *repository) UpdateMemberRole(ctx context.Context, memberID snowflake.ID, role domain.Role) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE organization_members SET role = ? WHERE id = ?`,
		role,
		memberID,
	)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

func (r *repository) RemoveMember(ctx context.Context, memberID snowflake.ID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`DELETE FROM organization_members WHERE id = ?`,
		memberID,
	)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

func (r *repository) CountOwners(ctx context.Context, orgID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM organization_members WHERE org_id = ? AND role = ?`,
		orgID,
		domain.RoleOwner,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *repository) CreateInvites(ctx context.Context, invites []domain.OrganizationInvite) error {
	for _, invite := range invites {
		err := r.db.WithContext(ctx).Exec(
			`INSERT INTO organization_invites (id, org_id, email, role, status, invited_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			invite.ID,
			invite.OrgID,
			invite.Email,
			invite.Role,
			invite.Status,
			invite.InvitedBy,
			invite.CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *repository) GetInvite(ctx context.Context, inviteID snowflake.ID) (*domain.OrganizationInvite, error) {
	var invite domain.OrganizationInvite
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM organization_invites WHERE id = ?`,
		inviteID,
	).Scan(&invite).Error
	if err != nil {
		return nil, err
	}

	if invite.ID == 0 {
		return nil, nil
	}

	return &invite, nil
}

func (r *repository) ListInvites(ctx context.Context, orgID snowflake.ID) ([]domain.OrganizationInvite, error) {
	var invites []domain.OrganizationInvite
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM organization_invites WHERE org_id = ? ORDER BY created_at DESC, id DESC`,
		orgID,
	).Scan(&invites).Error
	if err != nil {
		return nil, err
	}

	return invites, nil
}

// UpdateInviteStatus flips an invite from one status to another. The
// conditional WHERE makes concurrent accept/revoke racers lose cleanly.
func (r *repository) UpdateInviteStatus(ctx context.Context, inviteID snowflake.ID, from, to domain.InviteStatus) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE organization_invites SET status = ? WHERE id = ? AND status = ?`,
		to,
		inviteID,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}
