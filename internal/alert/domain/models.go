package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type AlertStatus string

const (
	AlertActive   AlertStatus = "ACTIVE"
	AlertResolved AlertStatus = "RESOLVED"
)

// CapacityAlert flags a published event whose registered count crossed the
// configured share of max capacity. At most one ACTIVE alert exists per
// event; cancellations that drop the count back under the threshold resolve
// it, and a later surge raises a fresh one.
type CapacityAlert struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID `gorm:"not null;index" json:"organization_id"`
	EventID         snowflake.ID `gorm:"not null;index" json:"event_id"`
	ThresholdPct    float64      `gorm:"not null" json:"threshold_pct"`
	MaxCapacity     int64        `gorm:"not null" json:"max_capacity"`
	RegisteredCount int64        `gorm:"not null" json:"registered_count"`
	Status          AlertStatus  `gorm:"type:text;not null;default:ACTIVE;index" json:"status"`
	RaisedAt        time.Time    `gorm:"not null" json:"raised_at"`
	ResolvedAt      *time.Time   `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CapacityAlert) TableName() string { return "capacity_alerts" }
