package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"gorm.io/datatypes"
)

// EventPricing holds the configured base price of one event. An event that
// has no row here is unpriced and cannot be previewed or registered against.
type EventPricing struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;uniqueIndex:ux_event_pricings_org_event" json:"organization_id"`
	EventID   snowflake.ID `gorm:"not null;uniqueIndex:ux_event_pricings_org_event" json:"event_id"`
	BasePrice int64        `gorm:"not null;default:0" json:"base_price"`
	Currency  string       `gorm:"type:text;not null" json:"currency"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (EventPricing) TableName() string { return "event_pricings" }

// PricingRule is a stored conditional override of the base price. Position
// preserves declaration order, which breaks priority ties during selection.
type PricingRule struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID   `gorm:"not null;index" json:"organization_id"`
	PricingID      snowflake.ID   `gorm:"not null;index" json:"pricing_id"`
	Name           string         `gorm:"not null" json:"name"`
	Description    string         `gorm:"type:text" json:"description,omitempty"`
	Price          int64          `gorm:"not null;default:0" json:"price"`
	Conditions     datatypes.JSON `gorm:"type:jsonb" json:"conditions,omitempty"`
	ConditionLogic engine.Logic   `gorm:"column:condition_logic;type:text;not null;default:AND" json:"condition_logic"`
	Priority       int            `gorm:"not null;default:0" json:"priority"`
	Active         bool           `gorm:"not null;default:true" json:"active"`
	Position       int            `gorm:"not null;default:0" json:"position"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PricingRule) TableName() string { return "pricing_rules" }

// ConditionValues decodes the stored conditions. Malformed payloads yield
// nil, which the evaluator treats as always matching; write paths keep the
// column well formed.
func (r PricingRule) ConditionValues() []engine.Condition {
	if len(r.Conditions) == 0 {
		return nil
	}
	var conditions []engine.Condition
	if err := json.Unmarshal(r.Conditions, &conditions); err != nil {
		return nil
	}
	return conditions
}

// EngineRule converts the stored row to its engine form.
func (r PricingRule) EngineRule() engine.Rule {
	return engine.Rule{
		ID:             r.ID.String(),
		Name:           r.Name,
		Description:    r.Description,
		Price:          r.Price,
		Conditions:     r.ConditionValues(),
		ConditionLogic: r.ConditionLogic,
		Priority:       r.Priority,
		Active:         r.Active,
	}
}
