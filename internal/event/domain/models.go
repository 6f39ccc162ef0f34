package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventArchived  EventStatus = "ARCHIVED"
)

// Event is a single occasion registrants sign up for. RegisteredCount is a
// denormalized counter maintained by conditional updates at registration
// commit; it is never derived from the pricing engine's preview.
type Event struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID      `gorm:"not null;index:ux_events_org_slug,priority:1" json:"organization_id"`
	ClientID        *snowflake.ID     `gorm:"index" json:"client_id,omitempty"`
	Title           string            `gorm:"not null" json:"title"`
	Slug            string            `gorm:"not null;index:ux_events_org_slug,priority:2" json:"slug"`
	Description     string            `gorm:"type:text" json:"description,omitempty"`
	Location        string            `gorm:"column:location" json:"location,omitempty"`
	Timezone        string            `gorm:"column:timezone" json:"timezone,omitempty"`
	StartsAt        *time.Time        `gorm:"column:starts_at" json:"starts_at,omitempty"`
	EndsAt          *time.Time        `gorm:"column:ends_at" json:"ends_at,omitempty"`
	Status          EventStatus       `gorm:"not null;default:DRAFT" json:"status"`
	MaxCapacity     *int64            `gorm:"column:max_capacity" json:"max_capacity,omitempty"`
	RegisteredCount int64             `gorm:"not null;default:0" json:"registered_count"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Event) TableName() string { return "events" }

// Remaining returns the open capacity, or -1 when the event is uncapped.
func (e Event) Remaining() int64 {
	if e.MaxCapacity == nil {
		return -1
	}
	remaining := *e.MaxCapacity - e.RegisteredCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsFull reports whether no capacity remains.
func (e Event) IsFull() bool {
	return e.MaxCapacity != nil && e.RegisteredCount >= *e.MaxCapacity
}
