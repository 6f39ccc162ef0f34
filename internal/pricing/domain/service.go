package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
)

type UpsertPricingRequest struct {
	EventID   string `json:"event_id"`
	BasePrice int64  `json:"base_price"`
	Currency  string `json:"currency"`
}

type GetPricingRequest struct {
	EventID string
}

// PricingWithRules is the admin view of an event's pricing configuration,
// rules in declaration order.
type PricingWithRules struct {
	EventPricing
	Rules []PricingRule `json:"rules"`
}

type CreateRuleRequest struct {
	EventID        string             `json:"event_id"`
	Name           string             `json:"name"`
	Description    string             `json:"description,omitempty"`
	Price          int64              `json:"price"`
	Conditions     []engine.Condition `json:"conditions,omitempty"`
	ConditionLogic string             `json:"condition_logic,omitempty"`
	Priority       int                `json:"priority"`
}

type UpdateRuleRequest struct {
	EventID        string              `json:"event_id"`
	RuleID         string              `json:"rule_id"`
	Name           *string             `json:"name,omitempty"`
	Description    *string             `json:"description,omitempty"`
	Price          *int64              `json:"price,omitempty"`
	Conditions     *[]engine.Condition `json:"conditions,omitempty"`
	ConditionLogic *string             `json:"condition_logic,omitempty"`
	Priority       *int                `json:"priority,omitempty"`
	Active         *bool               `json:"active,omitempty"`
}

type RuleRequest struct {
	EventID string
	RuleID  string
}

type ReorderRulesRequest struct {
	EventID string   `json:"event_id"`
	RuleIDs []string `json:"rule_ids"`
}

// PreviewRequest is one registrant's inputs for an advisory calculation.
type PreviewRequest struct {
	EventID          string             `json:"event_id"`
	FormData         map[string]any     `json:"form_data,omitempty"`
	SelectedAddOns   []engine.Selection `json:"selected_add_ons,omitempty"`
	SponsorshipCodes []string           `json:"sponsorship_codes,omitempty"`
}

type Service interface {
	// Upsert creates or replaces the event's base price configuration.
	Upsert(context.Context, UpsertPricingRequest) (EventPricing, error)
	GetByEvent(context.Context, GetPricingRequest) (PricingWithRules, error)

	AddRule(context.Context, CreateRuleRequest) (PricingRule, error)
	UpdateRule(context.Context, UpdateRuleRequest) (PricingRule, error)
	RemoveRule(context.Context, RuleRequest) error
	ReorderRules(context.Context, ReorderRulesRequest) ([]PricingRule, error)

	// Preview runs a calculation against current configuration without
	// reserving anything. Capacity and sponsorship balances in the result
	// are estimates; commit re-verifies both.
	Preview(context.Context, PreviewRequest) (engine.Breakdown, error)

	// Snapshot assembles the engine view of an event's pricing, rules, and
	// add-on catalog, serving from a short-lived cache when warm. Nil means
	// the event has no pricing configured.
	Snapshot(ctx context.Context, orgID, eventID snowflake.ID) (*engine.Snapshot, error)

	// Invalidate drops the cached snapshot after out-of-context writes, such
	// as a committed registration bumping add-on counts.
	Invalidate(orgID, eventID snowflake.ID)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEvent        = errors.New("invalid_event")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidLogic        = errors.New("invalid_condition_logic")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidReorder      = errors.New("invalid_reorder")
	ErrNotFound            = errors.New("not_found")
	ErrRuleNotFound        = errors.New("rule_not_found")
)
