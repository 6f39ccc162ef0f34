package authorization

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/eventra/internal/audit/domain"
	orgdomain "github.com/smallbiznis/eventra/internal/organization/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type auditStub struct {
	mu      sync.Mutex
	entries []string
}

func (a *auditStub) AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, action)
	return nil
}

func (a *auditStub) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func (a *auditStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	copy(out, a.entries)
	return out
}

type authzFixture struct {
	svc   Service
	db    *gorm.DB
	node  *snowflake.Node
	audit *auditStub
}

func setupAuthorization(t *testing.T) authzFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&orgdomain.OrganizationMember{}))

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	audit := &auditStub{}
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Enforcer: enforcer,
		AuditSvc: audit,
	})
	return authzFixture{svc: svc, db: db, node: node, audit: audit}
}

func (f authzFixture) addMember(t *testing.T, orgID snowflake.ID, role orgdomain.Role) snowflake.ID {
	t.Helper()
	userID := f.node.Generate()
	member := orgdomain.OrganizationMember{
		ID:     f.node.Generate(),
		OrgID:  orgID,
		UserID: userID,
		Role:   role,
	}
	require.NoError(t, f.db.Create(&member).Error)
	return userID
}

func userActor(id snowflake.ID) string { return fmt.Sprintf("user:%s", id) }

func TestAuthorizeSystemActor(t *testing.T) {
	f := setupAuthorization(t)
	orgID := f.node.Generate()

	require.NoError(t, f.svc.Authorize(context.Background(), "system", orgID.String(), ObjectSponsorship, ActionSponsorshipExpire))
	require.NoError(t, f.svc.Authorize(context.Background(), "system", orgID.String(), ObjectEvent, ActionEventCapacityAlert))
	require.NoError(t, f.svc.Authorize(context.Background(), "system", orgID.String(), ObjectDashboard, ActionDashboardRebuild))
}

func TestAuthorizeRolePermissions(t *testing.T) {
	f := setupAuthorization(t)
	ctx := context.Background()
	orgID := f.node.Generate()

	organizer := f.addMember(t, orgID, orgdomain.RoleOrganizer)
	finance := f.addMember(t, orgID, orgdomain.RoleFinance)
	member := f.addMember(t, orgID, orgdomain.RoleMember)
	admin := f.addMember(t, orgID, orgdomain.RoleAdmin)
	owner := f.addMember(t, orgID, orgdomain.RoleOwner)

	// Organizers manage events but not API keys.
	require.NoError(t, f.svc.Authorize(ctx, userActor(organizer), orgID.String(), ObjectEvent, ActionEventCreate))
	require.NoError(t, f.svc.Authorize(ctx, userActor(organizer), orgID.String(), ObjectSponsorship, ActionSponsorshipCreate))
	require.ErrorIs(t, f.svc.Authorize(ctx, userActor(organizer), orgID.String(), ObjectAPIKey, ActionAPIKeyCreate), ErrForbidden)

	// Finance reads money flows but cannot publish events.
	require.NoError(t, f.svc.Authorize(ctx, userActor(finance), orgID.String(), ObjectReceipt, ActionReceiptView))
	require.NoError(t, f.svc.Authorize(ctx, userActor(finance), orgID.String(), ObjectRegistration, ActionRegistrationExport))
	require.ErrorIs(t, f.svc.Authorize(ctx, userActor(finance), orgID.String(), ObjectEvent, ActionEventPublish), ErrForbidden)

	// Members are read-only.
	require.NoError(t, f.svc.Authorize(ctx, userActor(member), orgID.String(), ObjectEvent, ActionEventView))
	require.ErrorIs(t, f.svc.Authorize(ctx, userActor(member), orgID.String(), ObjectEvent, ActionEventCreate), ErrForbidden)

	// Admin inherits organizer and finance; key revocation stays with owner.
	require.NoError(t, f.svc.Authorize(ctx, userActor(admin), orgID.String(), ObjectEvent, ActionEventPublish))
	require.NoError(t, f.svc.Authorize(ctx, userActor(admin), orgID.String(), ObjectAPIKey, ActionAPIKeyCreate))
	require.ErrorIs(t, f.svc.Authorize(ctx, userActor(admin), orgID.String(), ObjectAPIKey, ActionAPIKeyRevoke), ErrForbidden)
	require.NoError(t, f.svc.Authorize(ctx, userActor(owner), orgID.String(), ObjectAPIKey, ActionAPIKeyRevoke))
}

func TestAuthorizeRoleIsScopedToOrganization(t *testing.T) {
	f := setupAuthorization(t)
	ctx := context.Background()
	orgA := f.node.Generate()
	orgB := f.node.Generate()

	organizer := f.addMember(t, orgA, orgdomain.RoleOrganizer)

	require.NoError(t, f.svc.Authorize(ctx, userActor(organizer), orgA.String(), ObjectEvent, ActionEventCreate))
	require.ErrorIs(t, f.svc.Authorize(ctx, userActor(organizer), orgB.String(), ObjectEvent, ActionEventCreate), ErrForbidden)
}

func TestAuthorizeDeniedWritesAudit(t *testing.T) {
	f := setupAuthorization(t)
	ctx := context.Background()
	orgID := f.node.Generate()
	member := f.addMember(t, orgID, orgdomain.RoleMember)

	err := f.svc.Authorize(ctx, userActor(member), orgID.String(), ObjectSponsorship, ActionSponsorshipCreate)
	require.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, f.audit.actions(), "authorization.denied")
}

func TestAuthorizeRejectsMalformedActors(t *testing.T) {
	f := setupAuthorization(t)
	ctx := context.Background()
	orgID := f.node.Generate()

	require.ErrorIs(t, f.svc.Authorize(ctx, "", orgID.String(), ObjectEvent, ActionEventView), ErrInvalidActor)
	require.ErrorIs(t, f.svc.Authorize(ctx, "robot:1", orgID.String(), ObjectEvent, ActionEventView), ErrInvalidActor)
	require.ErrorIs(t, f.svc.Authorize(ctx, "user:not-a-number", orgID.String(), ObjectEvent, ActionEventView), ErrInvalidActor)
	require.ErrorIs(t, f.svc.Authorize(ctx, "system", "", ObjectEvent, ActionEventView), ErrInvalidOrganization)
	require.ErrorIs(t, f.svc.Authorize(ctx, "system", orgID.String(), "", ActionEventView), ErrInvalidObject)
	require.ErrorIs(t, f.svc.Authorize(ctx, "system", orgID.String(), ObjectEvent, ""), ErrInvalidAction)
}

func TestAuthorizeMembershipChangeTakesEffect(t *testing.T) {
	f := setupAuthorization(t)
	ctx := context.Background()
	orgID := f.node.Generate()
	userID := f.addMember(t, orgID, orgdomain.RoleOrganizer)

	require.NoError(t, f.svc.Authorize(ctx, userActor(userID), orgID.String(), ObjectEvent, ActionEventCreate))

	// Demote to member; the next check re-resolves the role.
	require.NoError(t, f.db.Exec(
		`UPDATE organization_members SET role = ? WHERE org_id = ? AND user_id = ?`,
		orgdomain.RoleMember, orgID, userID,
	).Error)
	require.ErrorIs(t, f.svc.Authorize(ctx, userActor(userID), orgID.String(), ObjectEvent, ActionEventCreate), ErrForbidden)
}
