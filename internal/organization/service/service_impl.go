package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/eventra/internal/audit/domain"
	"github.com/smallbiznis/eventra/internal/organization/domain"
	"github.com/smallbiznis/eventra/internal/organization/event"
	referencedomain "github.com/smallbiznis/eventra/internal/reference/domain"
	"github.com/smallbiznis/eventra/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	fallbackCurrency   = "USD"
	inviteEmailTimeout = 10 * time.Second
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Ref       referencedomain.Repository
	Publisher event.EventPublisher
	Audit     auditdomain.Service
	Email     email.Provider
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	ref       referencedomain.Repository
	publisher event.EventPublisher
	audit     auditdomain.Service
	email     email.Provider
}

func NewService(p Params) domain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("organization.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		ref:       p.Ref,
		publisher: p.Publisher,
		audit:     p.Audit,
		email:     p.Email,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	countryCode := strings.TrimSpace(req.CountryCode)
	if countryCode == "" {
		return nil, domain.ErrInvalidCountry
	}

	timezoneName := strings.TrimSpace(req.TimezoneName)
	if timezoneName == "" {
		return nil, domain.ErrInvalidTimezone
	}

	currency := strings.ToUpper(strings.TrimSpace(req.DefaultCurrency))
	if currency == "" {
		currency = fallbackCurrency
	}

	supportEmail := strings.TrimSpace(req.SupportEmail)
	if supportEmail != "" {
		addr, err := mail.ParseAddress(supportEmail)
		if err != nil {
			return nil, domain.ErrInvalidEmail
		}
		supportEmail = strings.ToLower(addr.Address)
	}

	countryOK, err := s.countryExists(ctx, countryCode)
	if err != nil {
		return nil, err
	}
	if !countryOK {
		return nil, domain.ErrInvalidCountry
	}

	timezoneOK, err := s.timezoneAllowed(ctx, countryCode, timezoneName)
	if err != nil {
		return nil, err
	}
	if !timezoneOK {
		return nil, domain.ErrInvalidTimezone
	}

	currencyOK, err := s.currencyExists(ctx, currency)
	if err != nil {
		return nil, err
	}
	if !currencyOK {
		return nil, domain.ErrInvalidCurrency
	}

	orgSlug, err := s.uniqueSlug(ctx, name)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	orgID := s.genID.Generate()
	org := domain.Organization{
		ID:              orgID,
		Name:            name,
		Slug:            orgSlug,
		SupportEmail:    supportEmail,
		CountryCode:     countryCode,
		TimezoneName:    timezoneName,
		DefaultCurrency: currency,
		CreatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}

		member := domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			UserID:    userID,
			Role:      domain.RoleOwner,
			CreatedAt: now,
		}

		if err := repo.AddMember(ctx, member); err != nil {
			return err
		}

		return s.emitOrganizationCreated(ctx, tx, org, userID)
	})
	if err != nil {
		return nil, err
	}

	targetID := orgID.String()
	_ = s.audit.AuditLog(ctx, &orgID, "", nil, "organization.created", "organization", &targetID, map[string]any{
		"name":             name,
		"slug":             orgSlug,
		"country_code":     countryCode,
		"default_currency": currency,
	})

	return toOrganizationResponse(org), nil
}

func (s *service) GetByID(ctx context.Context, id string) (*domain.OrganizationResponse, error) {
	orgID, err := parseID(id, domain.ErrInvalidOrganization)
	if err != nil {
		return nil, err
	}

	org, err := s.repo.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}

	return toOrganizationResponse(*org), nil
}

func (s *service) GetBySlug(ctx context.Context, rawSlug string) (*domain.OrganizationResponse, error) {
	cleaned := strings.ToLower(strings.TrimSpace(rawSlug))
	if cleaned == "" {
		return nil, domain.ErrInvalidOrganization
	}

	org, err := s.repo.FindBySlug(ctx, cleaned)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}

	return toOrganizationResponse(*org), nil
}

func (s *service) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListResponseItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.OrganizationListResponseItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.OrganizationListResponseItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Slug:      item.Slug,
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) ListMembers(ctx context.Context, orgID string) ([]domain.MemberResponse, error) {
	id, err := parseID(orgID, domain.ErrInvalidOrganization)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.MemberResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.MemberResponse{
			ID:        item.ID.String(),
			UserID:    item.UserID.String(),
			Username:  item.Username,
			Email:     item.Email,
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}

	return resp, nil
}

// UpdateMemberRole changes a member's role. Demoting the last remaining owner
// is rejected so the organization always keeps at least one.
func (s *service) UpdateMemberRole(ctx context.Context, actorID snowflake.ID, orgID, memberID string, role domain.Role) error {
	oid, err := parseID(orgID, domain.ErrInvalidOrganization)
	if err != nil {
		return err
	}
	mid, err := parseID(memberID, domain.ErrMemberNotFound)
	if err != nil {
		return err
	}
	if !domain.ValidRole(role) {
		return domain.ErrInvalidRole
	}

	var previous domain.Role
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		member, err := repo.GetMember(ctx, oid, mid)
		if err != nil {
			return err
		}
		if member == nil {
			return domain.ErrMemberNotFound
		}
		previous = member.Role
		if member.Role == role {
			return nil
		}

		if member.Role == domain.RoleOwner && role != domain.RoleOwner {
			owners, err := repo.CountOwners(ctx, oid)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return domain.ErrLastOwner
			}
		}

		updated, err := repo.UpdateMemberRole(ctx, mid, role)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrMemberNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	if previous != role {
		actor := actorID.String()
		target := mid.String()
		_ = s.audit.AuditLog(ctx, &oid, "", &actor, "organization.member_role_updated", "organization_member", &target, map[string]any{
			"previous_role": string(previous),
			"role":          string(role),
		})
	}

	return nil
}

// RemoveMember deletes a membership. The last owner cannot be removed.
func (s *service) RemoveMember(ctx context.Context, actorID snowflake.ID, orgID, memberID string) error {
	oid, err := parseID(orgID, domain.ErrInvalidOrganization)
	if err != nil {
		return err
	}
	mid, err := parseID(memberID, domain.ErrMemberNotFound)
	if err != nil {
		return err
	}

	var removed domain.OrganizationMember
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		member, err := repo.GetMember(ctx, oid, mid)
		if err != nil {
			return err
		}
		if member == nil {
			return domain.ErrMemberNotFound
		}
		removed = *member

		if member.Role == domain.RoleOwner {
			owners, err := repo.CountOwners(ctx, oid)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return domain.ErrLastOwner
			}
		}

		deleted, err := repo.RemoveMember(ctx, mid)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrMemberNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	actor := actorID.String()
	target := mid.String()
	_ = s.audit.AuditLog(ctx, &oid, "", &actor, "organization.member_removed", "organization_member", &target, map[string]any{
		"user_id": removed.UserID.String(),
		"role":    string(removed.Role),
	})

	return nil
}

func (s *service) InviteMembers(ctx context.Context, userID snowflake.ID, orgID string, invites []domain.InviteRequest) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	oid, err := parseID(orgID, domain.ErrInvalidOrganization)
	if err != nil {
		return err
	}
	if len(invites) == 0 {
		return domain.ErrInvalidEmail
	}

	isMember, err := s.repo.IsMember(ctx, oid, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return domain.ErrForbidden
	}

	org, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		return err
	}
	if org == nil {
		return domain.ErrNotFound
	}

	now := time.Now().UTC()
	rows := make([]domain.OrganizationInvite, 0, len(invites))
	for _, invite := range invites {
		addr, err := mail.ParseAddress(strings.TrimSpace(invite.Email))
		if err != nil {
			return domain.ErrInvalidEmail
		}
		if !domain.ValidRole(invite.Role) {
			return domain.ErrInvalidRole
		}

		rows = append(rows, domain.OrganizationInvite{
			ID:        s.genID.Generate(),
			OrgID:     oid,
			Email:     strings.ToLower(addr.Address),
			Role:      invite.Role,
			Status:    domain.InvitePending,
			InvitedBy: userID,
			CreatedAt: now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateInvites(ctx, rows)
	})
	if err != nil {
		return err
	}

	actor := userID.String()
	for _, row := range rows {
		target := row.ID.String()
		_ = s.audit.AuditLog(ctx, &oid, "", &actor, "organization.member_invited", "organization_invite", &target, map[string]any{
			"email": row.Email,
			"role":  string(row.Role),
		})
	}

	go s.sendInviteEmails(*org, rows)

	return nil
}

func (s *service) ListInvites(ctx context.Context, orgID string) ([]domain.InviteResponse, error) {
	oid, err := parseID(orgID, domain.ErrInvalidOrganization)
	if err != nil {
		return nil, err
	}

	invites, err := s.repo.ListInvites(ctx, oid)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.InviteResponse, 0, len(invites))
	for _, invite := range invites {
		resp = append(resp, domain.InviteResponse{
			ID:        invite.ID.String(),
			Email:     invite.Email,
			Role:      invite.Role,
			Status:    invite.Status,
			InvitedBy: invite.InvitedBy.String(),
			CreatedAt: invite.CreatedAt,
		})
	}

	return resp, nil
}

// AcceptInvite redeems an invite for the signed-in user. The invite id is the
// token from the email link. Accepting twice is a no-op once membership
// exists.
func (s *service) AcceptInvite(ctx context.Context, userID snowflake.ID, inviteID string) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	iid, err := parseID(inviteID, domain.ErrInviteNotFound)
	if err != nil {
		return err
	}

	invite, err := s.repo.GetInvite(ctx, iid)
	if err != nil {
		return err
	}
	if invite == nil {
		return domain.ErrInviteNotFound
	}
	if invite.Status == domain.InviteRevoked {
		return domain.ErrInviteNotPending
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		alreadyMember, err := repo.IsMember(ctx, invite.OrgID, userID)
		if err != nil {
			return err
		}
		if alreadyMember {
			_, err := repo.UpdateInviteStatus(ctx, invite.ID, domain.InvitePending, domain.InviteAccepted)
			return err
		}

		flipped, err := repo.UpdateInviteStatus(ctx, invite.ID, domain.InvitePending, domain.InviteAccepted)
		if err != nil {
			return err
		}
		if !flipped {
			return domain.ErrInviteNotPending
		}

		member := domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     invite.OrgID,
			UserID:    userID,
			Role:      invite.Role,
			CreatedAt: time.Now().UTC(),
		}

		return repo.AddMember(ctx, member)
	})
	if err != nil {
		return err
	}

	orgID := invite.OrgID
	actor := userID.String()
	target := invite.ID.String()
	_ = s.audit.AuditLog(ctx, &orgID, "", &actor, "organization.invite_accepted", "organization_invite", &target, map[string]any{
		"email": invite.Email,
		"role":  string(invite.Role),
	})

	return nil
}

func (s *service) RevokeInvite(ctx context.Context, actorID snowflake.ID, orgID, inviteID string) error {
	oid, err := parseID(orgID, domain.ErrInvalidOrganization)
	if err != nil {
		return err
	}
	iid, err := parseID(inviteID, domain.ErrInviteNotFound)
	if err != nil {
		return err
	}

	invite, err := s.repo.GetInvite(ctx, iid)
	if err != nil {
		return err
	}
	if invite == nil || invite.OrgID != oid {
		return domain.ErrInviteNotFound
	}

	revoked, err := s.repo.UpdateInviteStatus(ctx, iid, domain.InvitePending, domain.InviteRevoked)
	if err != nil {
		return err
	}
	if !revoked {
		return domain.ErrInviteNotPending
	}

	actor := actorID.String()
	target := iid.String()
	_ = s.audit.AuditLog(ctx, &oid, "", &actor, "organization.invite_revoked", "organization_invite", &target, map[string]any{
		"email": invite.Email,
	})

	return nil
}

// uniqueSlug derives a slug from the organization name. Slugs are globally
// unique because public registration routes address organizations by slug.
func (s *service) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := slug.Make(name)
	candidate := base
	for i := 2; ; i++ {
		existing, err := s.repo.FindBySlug(ctx, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		if i > 50 {
			return fmt.Sprintf("%s-%s", base, s.genID.Generate().String()), nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *service) countryExists(ctx context.Context, code string) (bool, error) {
	countries, err := s.ref.ListCountries(ctx)
	if err != nil {
		return false, err
	}
	for _, country := range countries {
		if country.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) timezoneAllowed(ctx context.Context, countryCode, timezoneName string) (bool, error) {
	timezones, err := s.ref.ListTimezonesByCountry(ctx, countryCode)
	if err != nil {
		return false, err
	}
	for _, tz := range timezones {
		if tz.Name == timezoneName {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) currencyExists(ctx context.Context, code string) (bool, error) {
	currencies, err := s.ref.ListCurrencies(ctx)
	if err != nil {
		return false, err
	}
	for _, currency := range currencies {
		if currency.Code == code {
			return true, nil
		}
	}
	return false, nil
}

// emitOrganizationCreated writes the outbox row inside the creating
// transaction so provisioning never sees an organization without its event.
func (s *service) emitOrganizationCreated(ctx context.Context, tx *gorm.DB, org domain.Organization, ownerUserID snowflake.ID) error {
	payload := map[string]string{
		"organization_id":  org.ID.String(),
		"owner_user_id":    ownerUserID.String(),
		"slug":             org.Slug,
		"country_code":     org.CountryCode,
		"timezone_name":    org.TimezoneName,
		"default_currency": org.DefaultCurrency,
		"created_at":       org.CreatedAt.Format(time.RFC3339),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return s.publisher.WithTx(tx).Publish(ctx, event.OrganizationCreatedTopic, data)
}

// sendInviteEmails runs after commit. Failures are logged, never surfaced:
// the invites already exist and can be re-sent.
func (s *service) sendInviteEmails(org domain.Organization, invites []domain.OrganizationInvite) {
	ctx, cancel := context.WithTimeout(context.Background(), inviteEmailTimeout)
	defer cancel()

	for _, invite := range invites {
		subject := fmt.Sprintf("You have been invited to %s", org.Name)
		body := fmt.Sprintf(
			"<p>You have been invited to join <strong>%s</strong> as %s.</p><p>Your invite code: <strong>%s</strong></p>",
			org.Name,
			strings.ToLower(string(invite.Role)),
			invite.ID.String(),
		)
		if err := s.email.Send(ctx, []string{invite.Email}, subject, body); err != nil {
			s.log.Warn("invite email failed",
				zap.String("invite_id", invite.ID.String()),
				zap.Error(err),
			)
		}
	}
}

func parseID(raw string, invalid error) (snowflake.ID, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0, invalid
	}
	id, err := snowflake.ParseString(cleaned)
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}

func toOrganizationResponse(org domain.Organization) *domain.OrganizationResponse {
	return &domain.OrganizationResponse{
		ID:              org.ID.String(),
		Name:            org.Name,
		Slug:            org.Slug,
		SupportEmail:    org.SupportEmail,
		CountryCode:     org.CountryCode,
		TimezoneName:    org.TimezoneName,
		DefaultCurrency: org.DefaultCurrency,
	}
}
