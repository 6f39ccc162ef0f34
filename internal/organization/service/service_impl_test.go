package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/eventra/internal/audit/domain"
	authdomain "github.com/smallbiznis/eventra/internal/auth/domain"
	"github.com/smallbiznis/eventra/internal/organization/domain"
	"github.com/smallbiznis/eventra/internal/organization/event"
	"github.com/smallbiznis/eventra/internal/organization/repository"
	"github.com/smallbiznis/eventra/internal/reference"
	referencedomain "github.com/smallbiznis/eventra/internal/reference/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type capturedEmail struct {
	To      []string
	Subject string
	Body    string
}

type emailStub struct {
	mu    sync.Mutex
	sends []capturedEmail
}

func (s *emailStub) Send(_ context.Context, to []string, subject string, htmlBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, capturedEmail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (s *emailStub) SendTemplate(context.Context, []string, string, interface{}) error {
	return nil
}

func (s *emailStub) sent() []capturedEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]capturedEmail, len(s.sends))
	copy(out, s.sends)
	return out
}

type auditEntry struct {
	Action     string
	TargetType string
	TargetID   string
}

type auditStub struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (s *auditStub) AuditLog(_ context.Context, _ *snowflake.ID, _ string, _ *string, action string, targetType string, targetID *string, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := auditEntry{Action: action, TargetType: targetType}
	if targetID != nil {
		entry.TargetID = *targetID
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *auditStub) List(context.Context, auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func (s *auditStub) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry.Action)
	}
	return out
}

type orgFixture struct {
	svc   domain.Service
	repo  domain.Repository
	db    *gorm.DB
	node  *snowflake.Node
	email *emailStub
	audit *auditStub
}

func setupOrganization(t *testing.T) *orgFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&domain.Organization{},
		&domain.OrganizationMember{},
		&domain.OrganizationInvite{},
		&event.OutboxEvent{},
		&referencedomain.Country{},
		&referencedomain.CountryTimezone{},
		&referencedomain.Currency{},
		&authdomain.User{},
	))

	require.NoError(t, db.Create(&referencedomain.Country{Code: "US", Name: "United States"}).Error)
	require.NoError(t, db.Create(&referencedomain.Country{Code: "ID", Name: "Indonesia"}).Error)
	require.NoError(t, db.Create(&referencedomain.CountryTimezone{CountryCode: "US", TimezoneName: "America/New_York"}).Error)
	require.NoError(t, db.Create(&referencedomain.CountryTimezone{CountryCode: "ID", TimezoneName: "Asia/Jakarta"}).Error)
	require.NoError(t, db.Create(&referencedomain.Currency{Code: "USD", Name: "US Dollar", MinorUnit: 2, IsActive: true}).Error)
	require.NoError(t, db.Create(&referencedomain.Currency{Code: "IDR", Name: "Indonesian Rupiah", MinorUnit: 0, IsActive: true}).Error)
	require.NoError(t, db.Create(&referencedomain.Currency{Code: "ZWL", Name: "Zimbabwean Dollar", MinorUnit: 2}).Error)
	// gorm skips zero-valued fields carrying a default tag, so force the flag
	require.NoError(t, db.Exec(`UPDATE currencies SET is_active = false WHERE code = 'ZWL'`).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo := repository.NewRepository(db)
	email := &emailStub{}
	audit := &auditStub{}

	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      repo,
		Ref:       reference.NewRepository(db),
		Publisher: event.NewOutboxPublisher(db, node),
		Audit:     audit,
		Email:     email,
	})

	return &orgFixture{svc: svc, repo: repo, db: db, node: node, email: email, audit: audit}
}

func (f *orgFixture) createUser(t *testing.T, username string) snowflake.ID {
	t.Helper()
	user := authdomain.User{
		ID:          f.node.Generate(),
		Provider:    "local",
		ExternalID:  fmt.Sprintf("%s@example.com", username),
		DisplayName: username,
		Email:       fmt.Sprintf("%s@example.com", username),
		Metadata:    datatypes.JSONMap{},
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user.ID
}

func (f *orgFixture) createOrg(t *testing.T, ownerID snowflake.ID, name string) snowflake.ID {
	t.Helper()
	resp, err := f.svc.Create(context.Background(), ownerID, domain.CreateOrganizationRequest{
		Name:         name,
		CountryCode:  "US",
		TimezoneName: "America/New_York",
	})
	require.NoError(t, err)
	id, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)
	return id
}

func (f *orgFixture) addMember(t *testing.T, orgID, userID snowflake.ID, role domain.Role) snowflake.ID {
	t.Helper()
	member := domain.OrganizationMember{
		ID:        f.node.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.repo.AddMember(context.Background(), member))
	return member.ID
}

func (f *orgFixture) memberID(t *testing.T, orgID, userID snowflake.ID) snowflake.ID {
	t.Helper()
	var member domain.OrganizationMember
	require.NoError(t, f.db.First(&member, "org_id = ? AND user_id = ?", orgID, userID).Error)
	return member.ID
}

func TestCreateOrganization(t *testing.T) {
	f := setupOrganization(t)
	ctx := context.Background()
	owner := f.createUser(t, "ava")

	resp, err := f.svc.Create(ctx, owner, domain.CreateOrganizationRequest{
		Name:            "Acme Events",
		CountryCode:     "ID",
		TimezoneName:    "Asia/Jakarta",
		DefaultCurrency: "idr",
		SupportEmail:    "Help@Acme.Events",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Events", resp.Name)
	assert.Equal(t, "acme-events", resp.Slug)
	assert.Equal(t, "IDR", resp.DefaultCurrency)
	assert.Equal(t, "help@acme.events", resp.SupportEmail)

	orgID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)

	var member domain.OrganizationMember
	require.NoError(t, f.db.First(&member, "org_id = ?", orgID).Error)
	assert.Equal(t, owner, member.UserID)
	assert.Equal(t, domain.RoleOwner, member.Role)

	var outbox event.OutboxEvent
	require.NoError(t, f.db.First(&outbox, "org_id = ?", orgID).Error)
	assert.Equal(t, event.OrganizationCreatedTopic, outbox.EventType)
	assert.False(t, outbox.Published)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(outbox.Payload, &payload))
	assert.Equal(t, resp.ID, payload["organization_id"])
	assert.Equal(t, owner.String(), payload["owner_user_id"])
	assert.Equal(t, "acme-events", payload["slug"])
	assert.Equal(t, "IDR", payload["default_currency"])

	assert.Contains(t, f.audit.actions(), "organization.created")
}

func TestCreateOrganizationDefaultsCurrency(t *testing.T) {
	f := setupOrganization(t)
	owner := f.createUser(t, "ben")

	resp, err := f.svc.Create(context.Background(), owner, domain.CreateOrganizationRequest{
		Name:         "Plain Org",
		CountryCode:  "US",
		TimezoneName: "America/New_York",
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", resp.DefaultCurrency)
}

func TestCreateOrganizationValidation(t *testing.T) {
	f := setupOrganization(t)
	ctx := context.Background()
	owner := f.createUser(t, "cara")

	valid := domain.CreateOrganizationRequest{
		Name:         "Valid Org",
		CountryCode:  "US",
		TimezoneName: "America/New_York",
	}

	_, err := f.svc.Create(ctx, 0, valid)
	assert.ErrorIs(t, err, domain.ErrInvalidUser)

	req := valid
	req.Name = "  "
	_, err = f.svc.Create(ctx, owner, req)
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	req = valid
	req.CountryCode = "XX"
	_, err = f.svc.Create(ctx, owner, req)
	assert.ErrorIs(t, err, domain.ErrInvalidCountry)

	req = valid
	req.TimezoneName = "Asia/Jakarta" // valid zone, wrong country
	_, err = f.svc.Create(ctx, owner, req)
	assert.ErrorIs(t, err, domain.ErrInvalidTimezone)

	req = valid
	req.DefaultCurrency = "ZWL" // inactive
	_, err = f.svc.Create(ctx, owner, req)
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	req = valid
	req.SupportEmail = "not-an-email"
	_, err = f.svc.Create(ctx, owner, req)
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestCreateOrganizationSlugCollision(t *testing.T) {
	f := setupOrganization(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.createUser(t, "dan"), domain.CreateOrganizationRequest{
		Name:         "Summit Crew",
		CountryCode:  "US",
		TimezoneName: "America/New_York",
	})
	require.NoError(t, err)
	assert.Equal(t, "summit-crew", first.Slug)

	second, err := f.svc.Create(ctx, f.createUser(t, "eve"), domain.CreateOrganizationRequest{
		Name:         "Summit Crew",
		CountryCode:  "US",
		TimezoneName: "America/New_York",
	})
	require.NoError(t, err)
	assert.Equal(t, "summit-crew-2", second.Slug)
}

func TestGetBySlug(t *testing.T) {
	f := setupOrganization(t)
	ctx := context.Background()
	owner := f.createUser(t, "fay")
	orgID := f.createOrg(t, owner, "Lookup Org")

	resp, err := f.svc.GetBySlug(ctx, "Lookup-Org")
	require.NoError(t, err)
	assert.Equal(t, orgID.String(), resp.ID)

	_, err = f.svc.GetBySlug(ctx, "missing-org")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListOrganizationsByUser(t *testing.T) {
	f := setupOrganization(t)
	owner := f.createUser(t, "gil")
	f.createOrg(t, owner, "First Org")
	f.createOrg(t, owner, "Second Org")

	items, err := f.svc.ListOrganizationsByUser(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first-org", items[0].Slug)
	assert.Equal(t, domain.RoleOwner, items[0].Role)
}

func TestListMembers(t *testing.T) {
	f := setupOrganization(t)
	owner := f.createUser(t, "hana")
	orgID := f.createOrg(t, owner, "Member Org")
	helper := f.createUser(t, "ivan")
	f.addMember(t, orgID, helper, domain.RoleOrganizer)

	members, err := f.svc.ListMembers(context.Background(), orgID.String())
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "hana", members[0].Username)
	assert.Equal(t, domain.RoleOwner, members[0].Role)
	assert.Equal(t, "ivan@example.com", members[1].Email)
	assert.Equal(t, domain.RoleOrganizer, members[1].Role)
}

func TestUpdateMemberRole(t *testing.T) {
	f := setupOrganization(t)
	ctx := context.Background()
	owner := f.createUser(t, "june")
	orgID := f.createOrg(t, owner, "Role Org")
	ownerMemberID := f.memberID(t, orgID, owner)

	helper := f.createUser(t, "kai")
	helperMemberID := f.addMember(t, orgID, helper, domain.RoleMember)

	err := f.svc.UpdateMemberRole(ctx, owner, orgID.String(), helperMemberID.String(), domain.Role("SUPREME"))
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	err = f.svc.UpdateMemberRole(ctx, owner, orgID.String(), f.node.Generate().String(), domain.RoleFinance)
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)

	// sole owner cannot step down
	err = f.svc.UpdateMemberRole(ctx, owner, orgID.String(), ownerMemberID.String(), domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrLastOwner)

	require.NoError(t, f.svc.UpdateMemberRole(ctx, owner, orgID.String(), helperMemberID.String(), domain.RoleOwner))

	var updated domain.OrganizationMember
	require.NoError(t, f.db.First(&updated, "id = ?", helperMemberID).Error)
	assert.Equal(t, domain.RoleOwner, updated.Role)

	// two owners now, demotion allowed
	require.NoError(t, f.svc.UpdateMemberRole(ctx, owner, orgID.String(), ownerMemberID.String(), domain.RoleAdmin))

	assert.Contains(t, f.audit.actions(), "organization.member_role_updated")
}

func TestUpdateMemberRoleSameRoleIsNoOp(t *testing.T) {
	f := setupOrganization(t)
	ctx := context.Background()
	owner := f.createUser(t, "lena")
	orgID := f.createOrg(t, owner, "Quiet Org")
	helper := f.createUser(t, "milo")
	helperMemberID := f.addMember(t, orgID, helper, domain.RoleMember)

	before := len(f.audit.actions())
	require.NoError(t, f.svc.UpdateMemberRole(ctx, owner, orgID.String(), helperMemberID.String(), domain.RoleMember))
	assert.Equal(t, before, len(f.audit.actions()))
}

func TestRemoveMember(t *testing.T) {
	f := setupOrganization(t)
	ctx := context.Background()
	owner := f.createUser(t, "nora")
	orgID := f.createOrg(t, owner, "Remove Org")
	ownerMemberID := f.memberID(t, orgID, owner)

	helper := f.createUser(t, "omar")
	helperMemberID := f.addMember(t, orgID, helper, domain.RoleFinance)

	err := f.svc.RemoveMember(ctx, owner, orgID.String(), ownerMemberID.String())
	assert.ErrorIs(t, err, domain.ErrLastOwner)

	require.NoError(t, f.svc.RemoveMember(ctx, owner, orgID.String(), helperMemberID.String()))

	var count int64
	require.NoError(t, f.db.Model(&domain.OrganizationMember{}).Where("org_id = ?", orgID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	err = f.svc.RemoveMember(ctx, owner, orgID.String(), helperMemberID.String())
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)

	assert.Contains(t, f.audit.actions(), "organization.member_removed")
}

func TestInviteMembers(t *testing.T) {
	f := setupOrganization(t)
	ctx := context.Background()
	owner := f.createUser(t, "pia")
	orgID := f.createOrg(t, owner, "Invite Org")

	outsider := f.createUser(t, "quinn")
	err := f.svc.InviteMembers(ctx, outsider, orgID.String(), []domain.InviteRequest{
		{Email: "friend@example.com", Role: domain.RoleMember},
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = f.svc.InviteMembers(ctx, owner, orgID.String(), []domain.InviteRequest{
		{Email: "not an email", Role: domain.RoleMember},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	err = f.svc.InviteMembers(ctx, owner, orgID.String(), []domain.InviteRequest{
		{Email: "friend@example.com", Role: domain.Role("BOSS")},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	require.NoError(t, f.svc.InviteMembers(ctx, owner, orgID.String(), []domain.InviteRequest{
		{Email: "Helper@Example.com", Role: domain.RoleOrganizer},
		{Email: "viewer@example.com", Role: domain.RoleMember},
	}))

	invites, err := f.svc.ListInvites(ctx, orgID.String())
	require.NoError(t, err)
	require.Len(t, invites, 2)
	for _, invite := range invites {
		assert.Equal(t, domain.InvitePending, invite.Status)
		assert.Equal(t, owner.String(), invite.InvitedBy)
	}

	require.Eventually(t, func() bool { return len(f.email.sent()) == 2 }, 2*time.Second, 10*time.Millisecond)
	sent := f.email.sent()
	assert.Equal(t, []string{"helper@example.com"}, sent[0].To)
	assert.Contains(t, sent[0].Subject, "Invite Org")
}

func TestAcceptInvite(t *testing.T) {
	f := setupOrganization(t)
	ctx := context.Background()
	owner := f.createUser(t, "rhea")
	orgID := f.createOrg(t, owner, "Accept Org")

	require.NoError(t, f.svc.InviteMembers(ctx, owner, orgID.String(), []domain.InviteRequest{
		{Email: "newbie@example.com", Role: domain.RoleOrganizer},
	}))

	var invite domain.OrganizationInvite
	require.NoError(t, f.db.First(&invite, "org_id = ?", orgID).Error)

	newbie := f.createUser(t, "newbie")
	require.NoError(t, f.svc.AcceptInvite(ctx, newbie, invite.ID.String()))

	var member domain.OrganizationMember
	require.NoError(t, f.db.First(&member, "org_id = ? AND user_id = ?", orgID, newbie).Error)
	assert.Equal(t, domain.RoleOrganizer, member.Role)

	var stored domain.OrganizationInvite
	require.NoError(t, f.db.First(&stored, "id = ?", invite.ID).Error)
	assert.Equal(t, domain.InviteAccepted, stored.Status)

	// second accept by the same user is a no-op
	require.NoError(t, f.svc.AcceptInvite(ctx, newbie, invite.ID.String()))

	var count int64
	require.NoError(t, f.db.Model(&domain.OrganizationMember{}).Where("org_id = ? AND user_id = ?", orgID, newbie).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// a different user cannot redeem the spent invite
	late := f.createUser(t, "late")
	err := f.svc.AcceptInvite(ctx, late, invite.ID.String())
	assert.ErrorIs(t, err, domain.ErrInviteNotPending)

	err = f.svc.AcceptInvite(ctx, newbie, f.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
}

func TestRevokeInvite(t *testing.T) {
	f := setupOrganization(t)
	ctx := context.Background()
	owner := f.createUser(t, "sol")
	orgID := f.createOrg(t, owner, "Revoke Org")
	otherOrgID := f.createOrg(t, owner, "Other Org")

	require.NoError(t, f.svc.InviteMembers(ctx, owner, orgID.String(), []domain.InviteRequest{
		{Email: "pending@example.com", Role: domain.RoleMember},
	}))

	var invite domain.OrganizationInvite
	require.NoError(t, f.db.First(&invite, "org_id = ?", orgID).Error)

	err := f.svc.RevokeInvite(ctx, owner, otherOrgID.String(), invite.ID.String())
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)

	require.NoError(t, f.svc.RevokeInvite(ctx, owner, orgID.String(), invite.ID.String()))

	var stored domain.OrganizationInvite
	require.NoError(t, f.db.First(&stored, "id = ?", invite.ID).Error)
	assert.Equal(t, domain.InviteRevoked, stored.Status)

	err = f.svc.RevokeInvite(ctx, owner, orgID.String(), invite.ID.String())
	assert.ErrorIs(t, err, domain.ErrInviteNotPending)

	stranger := f.createUser(t, "tess")
	err = f.svc.AcceptInvite(ctx, stranger, invite.ID.String())
	assert.ErrorIs(t, err, domain.ErrInviteNotPending)
}
