package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/pricing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPricing(ctx context.Context, db *gorm.DB, pricing *domain.EventPricing) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO event_pricings (id, org_id, event_id, base_price, currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pricing.ID,
		pricing.OrgID,
		pricing.EventID,
		pricing.BasePrice,
		pricing.Currency,
		pricing.CreatedAt,
		pricing.UpdatedAt,
	).Error
}

func (r *repo) UpdatePricing(ctx context.Context, db *gorm.DB, pricing *domain.EventPricing) error {
	return db.WithContext(ctx).Exec(
		`UPDATE event_pricings
		 SET base_price = ?, currency = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND id = ?`,
		pricing.BasePrice,
		pricing.Currency,
		pricing.OrgID,
		pricing.ID,
	).Error
}

func (r *repo) FindPricingByEvent(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID) (*domain.EventPricing, error) {
	var pricing domain.EventPricing
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, event_id, base_price, currency, created_at, updated_at
		 FROM event_pricings WHERE org_id = ? AND event_id = ?`,
		orgID,
		eventID,
	).Scan(&pricing).Error
	if err != nil {
		return nil, err
	}
	if pricing.ID == 0 {
		return nil, nil
	}
	return &pricing, nil
}

func (r *repo) InsertRule(ctx context.Context, db *gorm.DB, rule *domain.PricingRule) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO pricing_rules (id, org_id, pricing_id, name, description, price, conditions, condition_logic, priority, active, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.OrgID,
		rule.PricingID,
		rule.Name,
		rule.Description,
		rule.Price,
		rule.Conditions,
		rule.ConditionLogic,
		rule.Priority,
		rule.Active,
		rule.Position,
		rule.CreatedAt,
		rule.UpdatedAt,
	).Error
}

func (r *repo) FindRuleByID(ctx context.Context, db *gorm.DB, orgID, pricingID, ruleID snowflake.ID) (*domain.PricingRule, error) {
	var rule domain.PricingRule
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, pricing_id, name, description, price, conditions, condition_logic, priority, active, position, created_at, updated_at
		 FROM pricing_rules WHERE org_id = ? AND pricing_id = ? AND id = ?`,
		orgID,
		pricingID,
		ruleID,
	).Scan(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) ListRules(ctx context.Context, db *gorm.DB, orgID, pricingID snowflake.ID) ([]domain.PricingRule, error) {
	var rules []domain.PricingRule
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, pricing_id, name, description, price, conditions, condition_logic, priority, active, position, created_at, updated_at
		 FROM pricing_rules WHERE org_id = ? AND pricing_id = ?
		 ORDER BY position ASC, id ASC`,
		orgID,
		pricingID,
	).Scan(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repo) UpdateRule(ctx context.Context, db *gorm.DB, rule *domain.PricingRule) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pricing_rules
		 SET name = ?, description = ?, price = ?, conditions = ?, condition_logic = ?, priority = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND pricing_id = ? AND id = ?`,
		rule.Name,
		rule.Description,
		rule.Price,
		rule.Conditions,
		rule.ConditionLogic,
		rule.Priority,
		rule.Active,
		rule.OrgID,
		rule.PricingID,
		rule.ID,
	).Error
}

func (r *repo) DeleteRule(ctx context.Context, db *gorm.DB, orgID, pricingID, ruleID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM pricing_rules WHERE org_id = ? AND pricing_id = ? AND id = ?`,
		orgID,
		pricingID,
		ruleID,
	).Error
}

func (r *repo) UpdateRulePosition(ctx context.Context, db *gorm.DB, orgID, pricingID, ruleID snowflake.ID, position int) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pricing_rules SET position = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND pricing_id = ? AND id = ?`,
		position,
		orgID,
		pricingID,
		ruleID,
	).Error
}
