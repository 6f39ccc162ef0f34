package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/eventra/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrganization = "organization"
	ObjectClient       = "client"
	ObjectEvent        = "event"
	ObjectForm         = "form"
	ObjectAddOn        = "addon"
	ObjectPricing      = "pricing"
	ObjectSponsorship  = "sponsorship"
	ObjectRegistration = "registration"
	ObjectReceipt      = "receipt"
	ObjectDashboard    = "dashboard"
	ObjectAPIKey       = "api_key"
	ObjectAuditLog     = "audit_log"
	ObjectUser         = "user"
)

const (
	ActionOrganizationView          = "organization.view"
	ActionOrganizationUpdate        = "organization.update"
	ActionOrganizationManageMembers = "organization.manage_members"
	ActionOrganizationInvite        = "organization.invite"

	ActionClientView   = "client.view"
	ActionClientCreate = "client.create"
	ActionClientUpdate = "client.update"
	ActionClientDelete = "client.delete"

	ActionEventView          = "event.view"
	ActionEventCreate        = "event.create"
	ActionEventUpdate        = "event.update"
	ActionEventPublish       = "event.publish"
	ActionEventArchive       = "event.archive"
	ActionEventCapacityAlert = "event.capacity_alert"

	ActionFormView     = "form.view"
	ActionFormCreate   = "form.create"
	ActionFormUpdate   = "form.update"
	ActionFormActivate = "form.activate"

	ActionAddOnView   = "addon.view"
	ActionAddOnCreate = "addon.create"
	ActionAddOnUpdate = "addon.update"
	ActionAddOnDelete = "addon.delete"

	ActionPricingView    = "pricing.view"
	ActionPricingUpdate  = "pricing.update"
	ActionPricingPreview = "pricing.preview"

	ActionSponsorshipView    = "sponsorship.view"
	ActionSponsorshipCreate  = "sponsorship.create"
	ActionSponsorshipUpdate  = "sponsorship.update"
	ActionSponsorshipDisable = "sponsorship.disable"
	ActionSponsorshipExpire  = "sponsorship.expire"

	ActionRegistrationView   = "registration.view"
	ActionRegistrationCreate = "registration.create"
	ActionRegistrationReview = "registration.review"
	ActionRegistrationCancel = "registration.cancel"
	ActionRegistrationExport = "registration.export"

	ActionReceiptView  = "receipt.view"
	ActionReceiptIssue = "receipt.issue"

	ActionDashboardView    = "dashboard.view"
	ActionDashboardRebuild = "dashboard.rebuild"

	ActionAPIKeyView   = "api_key.view"
	ActionAPIKeyCreate = "api_key.create"
	ActionAPIKeyRotate = "api_key.rotate"
	ActionAPIKeyRevoke = "api_key.revoke"

	ActionAuditLogView = "audit_log.view"

	ActionUserView   = "user.view"
	ActionUserUpdate = "user.update"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, orgID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorType, actorID, err := s.resolveActor(ctx, actor, orgID)
	if err != nil {
		s.auditDenied(ctx, actorType, actorID, orgID, object, action)
		return err
	}

	domain := fmt.Sprintf("org:%s", orgID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actorType, actorID, orgID, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.auditGranted(ctx, actorType, actorID, orgID, object, action)
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string, orgID string) (string, string, string, *string, error) {
	if actor == "system" {
		roleName := "role:system"
		return actor, roleName, "system", nil, nil
	}
	if strings.HasPrefix(actor, "api_key:") {
		// API keys act with the system role; scope checks happen at the route.
		apiKeyIDRaw := strings.TrimPrefix(actor, "api_key:")
		apiKeyID, err := snowflake.ParseString(apiKeyIDRaw)
		if err != nil || apiKeyID == 0 {
			return "", "", "", nil, ErrInvalidActor
		}
		apiKeyIDStr := apiKeyID.String()
		roleName := "role:system"
		return actor, roleName, "api_key", &apiKeyIDStr, nil
	}
	if strings.HasPrefix(actor, "user:") {
		userIDRaw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(userIDRaw)
		if err != nil || userID == 0 {
			return "", "", "", nil, ErrInvalidActor
		}
		parsedOrgID, err := snowflake.ParseString(orgID)
		userIDStr := userID.String()
		if err != nil || parsedOrgID == 0 {
			return actor, "", "user", &userIDStr, ErrInvalidOrganization
		}
		role, err := s.roleForUser(ctx, parsedOrgID, userID)
		if err != nil {
			return actor, "", "user", &userIDStr, err
		}
		roleName := fmt.Sprintf("role:%s", strings.ToLower(role))
		return actor, roleName, "user", &userIDStr, nil
	}
	return "", "", "", nil, ErrInvalidActor
}

func (s *ServiceImpl) roleForUser(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM organization_members
		 WHERE org_id = ? AND user_id = ?
		 LIMIT 1`,
		orgID,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID *string, orgID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, &parsedOrgID, actorType, actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"actor":   actorType,
		"org_id":  orgID,
		"subject": actorSubject(actorType, actorID),
	})
}

func (s *ServiceImpl) auditGranted(ctx context.Context, actorType string, actorID *string, orgID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, &parsedOrgID, actorType, actorID, "authorization.granted", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"actor":   actorType,
		"org_id":  orgID,
		"subject": actorSubject(actorType, actorID),
	})
}

func actorSubject(actorType string, actorID *string) string {
	switch actorType {
	case "system":
		return "system"
	case "user":
		if actorID != nil && strings.TrimSpace(*actorID) != "" {
			return fmt.Sprintf("user:%s", strings.TrimSpace(*actorID))
		}
	case "api_key":
		if actorID != nil && strings.TrimSpace(*actorID) != "" {
			return fmt.Sprintf("api_key:%s", strings.TrimSpace(*actorID))
		}
	}
	return ""
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionAPIKeyRotate, ActionAPIKeyRevoke, ActionRegistrationExport:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	memberPolicies := [][]string{
		{"role:member", ObjectEvent, ActionEventView},
		{"role:member", ObjectForm, ActionFormView},
		{"role:member", ObjectRegistration, ActionRegistrationView},
		{"role:member", ObjectDashboard, ActionDashboardView},
		{"role:member", ObjectUser, ActionUserView},
		{"role:member", ObjectOrganization, ActionOrganizationView},
	}

	// Organizers run the event side: events, forms, add-ons, pricing rules,
	// sponsorship batches and registration review.
	organizerPolicies := [][]string{
		{"role:organizer", ObjectClient, ActionClientView},
		{"role:organizer", ObjectClient, ActionClientCreate},
		{"role:organizer", ObjectClient, ActionClientUpdate},
		{"role:organizer", ObjectEvent, ActionEventCreate},
		{"role:organizer", ObjectEvent, ActionEventUpdate},
		{"role:organizer", ObjectEvent, ActionEventPublish},
		{"role:organizer", ObjectEvent, ActionEventArchive},
		{"role:organizer", ObjectForm, ActionFormCreate},
		{"role:organizer", ObjectForm, ActionFormUpdate},
		{"role:organizer", ObjectForm, ActionFormActivate},
		{"role:organizer", ObjectAddOn, ActionAddOnView},
		{"role:organizer", ObjectAddOn, ActionAddOnCreate},
		{"role:organizer", ObjectAddOn, ActionAddOnUpdate},
		{"role:organizer", ObjectAddOn, ActionAddOnDelete},
		{"role:organizer", ObjectPricing, ActionPricingView},
		{"role:organizer", ObjectPricing, ActionPricingUpdate},
		{"role:organizer", ObjectPricing, ActionPricingPreview},
		{"role:organizer", ObjectSponsorship, ActionSponsorshipView},
		{"role:organizer", ObjectSponsorship, ActionSponsorshipCreate},
		{"role:organizer", ObjectSponsorship, ActionSponsorshipUpdate},
		{"role:organizer", ObjectSponsorship, ActionSponsorshipDisable},
		{"role:organizer", ObjectRegistration, ActionRegistrationCreate},
		{"role:organizer", ObjectRegistration, ActionRegistrationReview},
		{"role:organizer", ObjectRegistration, ActionRegistrationCancel},
		{"role:organizer", ObjectReceipt, ActionReceiptView},
	}

	// Finance reads money flows: receipts, exports, utilization.
	financePolicies := [][]string{
		{"role:finance", ObjectPricing, ActionPricingView},
		{"role:finance", ObjectSponsorship, ActionSponsorshipView},
		{"role:finance", ObjectReceipt, ActionReceiptView},
		{"role:finance", ObjectReceipt, ActionReceiptIssue},
		{"role:finance", ObjectRegistration, ActionRegistrationExport},
		{"role:finance", ObjectAuditLog, ActionAuditLogView},
	}

	adminPolicies := [][]string{
		{"role:admin", ObjectOrganization, ActionOrganizationUpdate},
		{"role:admin", ObjectOrganization, ActionOrganizationManageMembers},
		{"role:admin", ObjectOrganization, ActionOrganizationInvite},
		{"role:admin", ObjectClient, ActionClientDelete},
		{"role:admin", ObjectRegistration, ActionRegistrationExport},
		{"role:admin", ObjectReceipt, ActionReceiptIssue},
		{"role:admin", ObjectDashboard, ActionDashboardRebuild},
		{"role:admin", ObjectAPIKey, ActionAPIKeyView},
		{"role:admin", ObjectAPIKey, ActionAPIKeyCreate},
		{"role:admin", ObjectAPIKey, ActionAPIKeyRotate},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},
		{"role:admin", ObjectUser, ActionUserUpdate},
	}

	ownerPolicies := [][]string{
		{"role:owner", ObjectAPIKey, ActionAPIKeyRevoke},
	}

	// Scheduler jobs and API keys run with the system role.
	systemPolicies := [][]string{
		{"role:system", ObjectEvent, ActionEventView},
		{"role:system", ObjectEvent, ActionEventCreate},
		{"role:system", ObjectEvent, ActionEventUpdate},
		{"role:system", ObjectEvent, ActionEventPublish},
		{"role:system", ObjectEvent, ActionEventArchive},
		{"role:system", ObjectEvent, ActionEventCapacityAlert},
		{"role:system", ObjectForm, ActionFormView},
		{"role:system", ObjectForm, ActionFormCreate},
		{"role:system", ObjectForm, ActionFormUpdate},
		{"role:system", ObjectForm, ActionFormActivate},
		{"role:system", ObjectAddOn, ActionAddOnView},
		{"role:system", ObjectAddOn, ActionAddOnCreate},
		{"role:system", ObjectAddOn, ActionAddOnUpdate},
		{"role:system", ObjectAddOn, ActionAddOnDelete},
		{"role:system", ObjectPricing, ActionPricingView},
		{"role:system", ObjectPricing, ActionPricingUpdate},
		{"role:system", ObjectPricing, ActionPricingPreview},
		{"role:system", ObjectSponsorship, ActionSponsorshipView},
		{"role:system", ObjectSponsorship, ActionSponsorshipCreate},
		{"role:system", ObjectSponsorship, ActionSponsorshipUpdate},
		{"role:system", ObjectSponsorship, ActionSponsorshipDisable},
		{"role:system", ObjectSponsorship, ActionSponsorshipExpire},
		{"role:system", ObjectRegistration, ActionRegistrationView},
		{"role:system", ObjectRegistration, ActionRegistrationCreate},
		{"role:system", ObjectRegistration, ActionRegistrationReview},
		{"role:system", ObjectRegistration, ActionRegistrationCancel},
		{"role:system", ObjectRegistration, ActionRegistrationExport},
		{"role:system", ObjectReceipt, ActionReceiptView},
		{"role:system", ObjectReceipt, ActionReceiptIssue},
		{"role:system", ObjectDashboard, ActionDashboardView},
		{"role:system", ObjectDashboard, ActionDashboardRebuild},
		{"role:system", ObjectClient, ActionClientView},
		{"role:system", ObjectClient, ActionClientCreate},
		{"role:system", ObjectClient, ActionClientUpdate},
		{"role:system", ObjectClient, ActionClientDelete},
	}

	policies := make([][]string, 0, 256)
	policies = append(policies, memberPolicies...)
	policies = append(policies, organizerPolicies...)
	policies = append(policies, financePolicies...)
	policies = append(policies, adminPolicies...)
	policies = append(policies, ownerPolicies...)
	policies = append(policies, systemPolicies...)

	// Admin inherits organizer and finance; owner inherits admin. Role links
	// are scoped per domain and created on demand, so inheritance is
	// materialized as copied policies instead of nested role links.
	for _, p := range memberPolicies {
		policies = append(policies,
			[]string{"role:organizer", p[1], p[2]},
			[]string{"role:finance", p[1], p[2]},
			[]string{"role:admin", p[1], p[2]},
			[]string{"role:owner", p[1], p[2]},
		)
	}
	for _, p := range organizerPolicies {
		policies = append(policies,
			[]string{"role:admin", p[1], p[2]},
			[]string{"role:owner", p[1], p[2]},
		)
	}
	for _, p := range financePolicies {
		policies = append(policies,
			[]string{"role:admin", p[1], p[2]},
			[]string{"role:owner", p[1], p[2]},
		)
	}
	for _, p := range adminPolicies {
		policies = append(policies, []string{"role:owner", p[1], p[2]})
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
