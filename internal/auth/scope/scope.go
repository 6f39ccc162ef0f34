package scope

import (
	"errors"
	"strings"

	"github.com/smallbiznis/eventra/internal/authorization"
)

type Scope string

var ErrInvalidScope = errors.New("invalid_scope")

const (
	ScopeEventView    Scope = "event:view"
	ScopeEventCreate  Scope = "event:create"
	ScopeEventUpdate  Scope = "event:update"
	ScopeEventPublish Scope = "event:publish"
	ScopeEventArchive Scope = "event:archive"

	ScopeFormView     Scope = "form:view"
	ScopeFormCreate   Scope = "form:create"
	ScopeFormUpdate   Scope = "form:update"
	ScopeFormActivate Scope = "form:activate"

	ScopeAddOnView   Scope = "addon:view"
	ScopeAddOnCreate Scope = "addon:create"
	ScopeAddOnUpdate Scope = "addon:update"
	ScopeAddOnDelete Scope = "addon:delete"

	ScopePricingView    Scope = "pricing:view"
	ScopePricingUpdate  Scope = "pricing:update"
	ScopePricingPreview Scope = "pricing:preview"

	ScopeSponsorshipView    Scope = "sponsorship:view"
	ScopeSponsorshipCreate  Scope = "sponsorship:create"
	ScopeSponsorshipUpdate  Scope = "sponsorship:update"
	ScopeSponsorshipDisable Scope = "sponsorship:disable"

	ScopeRegistrationView   Scope = "registration:view"
	ScopeRegistrationCreate Scope = "registration:create"
	ScopeRegistrationReview Scope = "registration:review"
	ScopeRegistrationCancel Scope = "registration:cancel"
	ScopeRegistrationExport Scope = "registration:export"

	ScopeReceiptView  Scope = "receipt:view"
	ScopeReceiptIssue Scope = "receipt:issue"

	ScopeDashboardView    Scope = "dashboard:view"
	ScopeDashboardRebuild Scope = "dashboard:rebuild"

	ScopeAPIKeyView   Scope = "api_key:view"
	ScopeAPIKeyCreate Scope = "api_key:create"
	ScopeAPIKeyRotate Scope = "api_key:rotate"
	ScopeAPIKeyRevoke Scope = "api_key:revoke"

	ScopeAuditLogView Scope = "audit_log:view"
)

type authzKey struct {
	object string
	action string
}

var authzScopeMap = map[authzKey]Scope{
	{normalize(authorization.ObjectEvent), normalize(authorization.ActionEventView)}:    ScopeEventView,
	{normalize(authorization.ObjectEvent), normalize(authorization.ActionEventCreate)}:  ScopeEventCreate,
	{normalize(authorization.ObjectEvent), normalize(authorization.ActionEventUpdate)}:  ScopeEventUpdate,
	{normalize(authorization.ObjectEvent), normalize(authorization.ActionEventPublish)}: ScopeEventPublish,
	{normalize(authorization.ObjectEvent), normalize(authorization.ActionEventArchive)}: ScopeEventArchive,

	{normalize(authorization.ObjectForm), normalize(authorization.ActionFormView)}:     ScopeFormView,
	{normalize(authorization.ObjectForm), normalize(authorization.ActionFormCreate)}:   ScopeFormCreate,
	{normalize(authorization.ObjectForm), normalize(authorization.ActionFormUpdate)}:   ScopeFormUpdate,
	{normalize(authorization.ObjectForm), normalize(authorization.ActionFormActivate)}: ScopeFormActivate,

	{normalize(authorization.ObjectAddOn), normalize(authorization.ActionAddOnView)}:   ScopeAddOnView,
	{normalize(authorization.ObjectAddOn), normalize(authorization.ActionAddOnCreate)}: ScopeAddOnCreate,
	{normalize(authorization.ObjectAddOn), normalize(authorization.ActionAddOnUpdate)}: ScopeAddOnUpdate,
	{normalize(authorization.ObjectAddOn), normalize(authorization.ActionAddOnDelete)}: ScopeAddOnDelete,

	{normalize(authorization.ObjectPricing), normalize(authorization.ActionPricingView)}:    ScopePricingView,
	{normalize(authorization.ObjectPricing), normalize(authorization.ActionPricingUpdate)}:  ScopePricingUpdate,
	{normalize(authorization.ObjectPricing), normalize(authorization.ActionPricingPreview)}: ScopePricingPreview,

	{normalize(authorization.ObjectSponsorship), normalize(authorization.ActionSponsorshipView)}:    ScopeSponsorshipView,
	{normalize(authorization.ObjectSponsorship), normalize(authorization.ActionSponsorshipCreate)}:  ScopeSponsorshipCreate,
	{normalize(authorization.ObjectSponsorship), normalize(authorization.ActionSponsorshipUpdate)}:  ScopeSponsorshipUpdate,
	{normalize(authorization.ObjectSponsorship), normalize(authorization.ActionSponsorshipDisable)}: ScopeSponsorshipDisable,

	{normalize(authorization.ObjectRegistration), normalize(authorization.ActionRegistrationView)}:   ScopeRegistrationView,
	{normalize(authorization.ObjectRegistration), normalize(authorization.ActionRegistrationCreate)}: ScopeRegistrationCreate,
	{normalize(authorization.ObjectRegistration), normalize(authorization.ActionRegistrationReview)}: ScopeRegistrationReview,
	{normalize(authorization.ObjectRegistration), normalize(authorization.ActionRegistrationCancel)}: ScopeRegistrationCancel,
	{normalize(authorization.ObjectRegistration), normalize(authorization.ActionRegistrationExport)}: ScopeRegistrationExport,

	{normalize(authorization.ObjectReceipt), normalize(authorization.ActionReceiptView)}:  ScopeReceiptView,
	{normalize(authorization.ObjectReceipt), normalize(authorization.ActionReceiptIssue)}: ScopeReceiptIssue,

	{normalize(authorization.ObjectDashboard), normalize(authorization.ActionDashboardView)}:    ScopeDashboardView,
	{normalize(authorization.ObjectDashboard), normalize(authorization.ActionDashboardRebuild)}: ScopeDashboardRebuild,

	{normalize(authorization.ObjectAPIKey), normalize(authorization.ActionAPIKeyView)}:   ScopeAPIKeyView,
	{normalize(authorization.ObjectAPIKey), normalize(authorization.ActionAPIKeyCreate)}: ScopeAPIKeyCreate,
	{normalize(authorization.ObjectAPIKey), normalize(authorization.ActionAPIKeyRotate)}: ScopeAPIKeyRotate,
	{normalize(authorization.ObjectAPIKey), normalize(authorization.ActionAPIKeyRevoke)}: ScopeAPIKeyRevoke,

	{normalize(authorization.ObjectAuditLog), normalize(authorization.ActionAuditLogView)}: ScopeAuditLogView,
}

var allScopes = []Scope{
	ScopeEventView,
	ScopeEventCreate,
	ScopeEventUpdate,
	ScopeEventPublish,
	ScopeEventArchive,
	ScopeFormView,
	ScopeFormCreate,
	ScopeFormUpdate,
	ScopeFormActivate,
	ScopeAddOnView,
	ScopeAddOnCreate,
	ScopeAddOnUpdate,
	ScopeAddOnDelete,
	ScopePricingView,
	ScopePricingUpdate,
	ScopePricingPreview,
	ScopeSponsorshipView,
	ScopeSponsorshipCreate,
	ScopeSponsorshipUpdate,
	ScopeSponsorshipDisable,
	ScopeRegistrationView,
	ScopeRegistrationCreate,
	ScopeRegistrationReview,
	ScopeRegistrationCancel,
	ScopeRegistrationExport,
	ScopeReceiptView,
	ScopeReceiptIssue,
	ScopeDashboardView,
	ScopeDashboardRebuild,
	ScopeAPIKeyView,
	ScopeAPIKeyCreate,
	ScopeAPIKeyRotate,
	ScopeAPIKeyRevoke,
	ScopeAuditLogView,
}

var validScopes = func() map[string]struct{} {
	lookup := make(map[string]struct{}, len(allScopes))
	for _, scope := range allScopes {
		lookup[normalize(string(scope))] = struct{}{}
	}
	return lookup
}()

func All() []string {
	values := make([]string, len(allScopes))
	for i, scope := range allScopes {
		values[i] = string(scope)
	}
	return values
}

func FromAuthz(object string, action string) Scope {
	key := authzKey{object: normalize(object), action: normalize(action)}
	if scope, ok := authzScopeMap[key]; ok {
		return scope
	}
	return ""
}

func Has(scopes []string, required Scope) bool {
	requiredScope := normalize(string(required))
	if requiredScope == "" {
		return false
	}

	requiredObject := strings.SplitN(requiredScope, ":", 2)[0]

	for _, scope := range scopes {
		normalized := normalize(scope)
		if normalized == "" {
			continue
		}
		if normalized == "*" {
			return true
		}
		if normalized == requiredScope {
			return true
		}
		if requiredObject != "" && (normalized == requiredObject+":*" || normalized == requiredObject+".*") {
			return true
		}
	}
	return false
}

func Validate(scopes []string) error {
	normalized := Normalize(scopes)
	for _, scope := range normalized {
		if IsValid(scope) {
			continue
		}
		// Object wildcards like event:* are accepted without a registry entry.
		if strings.HasSuffix(scope, ":*") || strings.HasSuffix(scope, ".*") {
			continue
		}
		return ErrInvalidScope
	}
	return nil
}

func Normalize(scopes []string) []string {
	if len(scopes) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(scopes))
	normalized := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		value := normalize(scope)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		normalized = append(normalized, value)
	}
	return normalized
}

func IsValid(scope string) bool {
	_, ok := validScopes[normalize(scope)]
	return ok
}

func normalize(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	return strings.ReplaceAll(normalized, ".", ":")
}
