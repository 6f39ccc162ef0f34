package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertPricing(ctx context.Context, db *gorm.DB, pricing *EventPricing) error
	UpdatePricing(ctx context.Context, db *gorm.DB, pricing *EventPricing) error
	FindPricingByEvent(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID) (*EventPricing, error)

	InsertRule(ctx context.Context, db *gorm.DB, rule *PricingRule) error
	FindRuleByID(ctx context.Context, db *gorm.DB, orgID, pricingID, ruleID snowflake.ID) (*PricingRule, error)

	// ListRules returns the rules in declaration order.
	ListRules(ctx context.Context, db *gorm.DB, orgID, pricingID snowflake.ID) ([]PricingRule, error)
	UpdateRule(ctx context.Context, db *gorm.DB, rule *PricingRule) error
	DeleteRule(ctx context.Context, db *gorm.DB, orgID, pricingID, ruleID snowflake.ID) error
	UpdateRulePosition(ctx context.Context, db *gorm.DB, orgID, pricingID, ruleID snowflake.ID, position int) error
}
