package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"gorm.io/datatypes"
)

// AddOnItem is a purchasable extra for one event. Conditions share the rule
// condition shape and gate whether the item is offered to a given submission.
type AddOnItem struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID   `gorm:"not null;index" json:"organization_id"`
	EventID         snowflake.ID   `gorm:"not null;index" json:"event_id"`
	Name            string         `gorm:"not null" json:"name"`
	Description     string         `gorm:"type:text" json:"description,omitempty"`
	UnitPrice       int64          `gorm:"not null;default:0" json:"unit_price"`
	Currency        string         `gorm:"type:text" json:"currency,omitempty"`
	MaxCapacity     *int64         `gorm:"column:max_capacity" json:"max_capacity,omitempty"`
	RegisteredCount int64          `gorm:"not null;default:0" json:"registered_count"`
	Conditions      datatypes.JSON `gorm:"type:jsonb" json:"conditions,omitempty"`
	ConditionLogic  engine.Logic   `gorm:"column:condition_logic;type:text;not null;default:AND" json:"condition_logic"`
	Active          bool           `gorm:"not null;default:true" json:"active"`
	Position        int            `gorm:"not null;default:0" json:"position"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AddOnItem) TableName() string { return "add_on_items" }

// ConditionValues decodes the stored gating conditions. Malformed payloads
// yield nil, which the evaluator treats as always matching; write paths keep
// the column well formed.
func (a AddOnItem) ConditionValues() []engine.Condition {
	if len(a.Conditions) == 0 {
		return nil
	}
	var conditions []engine.Condition
	if err := json.Unmarshal(a.Conditions, &conditions); err != nil {
		return nil
	}
	return conditions
}

// EngineAddOn converts the stored row to its engine form.
func (a AddOnItem) EngineAddOn() engine.AddOn {
	return engine.AddOn{
		ID:              a.ID.String(),
		Name:            a.Name,
		UnitPrice:       a.UnitPrice,
		Currency:        a.Currency,
		MaxCapacity:     a.MaxCapacity,
		RegisteredCount: a.RegisteredCount,
		Conditions:      a.ConditionValues(),
		ConditionLogic:  a.ConditionLogic,
		Active:          a.Active,
	}
}

// Remaining returns open capacity, or -1 when uncapped.
func (a AddOnItem) Remaining() int64 {
	if a.MaxCapacity == nil {
		return -1
	}
	remaining := *a.MaxCapacity - a.RegisteredCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
