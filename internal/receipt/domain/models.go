package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// LineKind classifies one receipt line. The vocabulary mirrors the pricing
// breakdown so a stored receipt can be read back without the engine.
type LineKind string

const (
	LineKindBase        LineKind = "base"
	LineKindRule        LineKind = "rule"
	LineKindAddOn       LineKind = "add_on"
	LineKindSponsorship LineKind = "sponsorship"
)

// LineItem is one row on an issued receipt. Amounts are minor currency
// units; sponsorship lines carry negative amounts.
type LineItem struct {
	Kind        LineKind `json:"kind"`
	Description string   `json:"description"`
	Quantity    int64    `json:"quantity"`
	UnitPrice   int64    `json:"unit_price"`
	Amount      int64    `json:"amount"`
}

// Receipt is the immutable financial record issued for a confirmed or
// pending registration. Attendee and event fields are denormalized at issue
// time so the document never changes after the fact.
type Receipt struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID   `gorm:"not null;uniqueIndex:ux_receipts_org_number" json:"organization_id"`
	RegistrationID snowflake.ID   `gorm:"not null;uniqueIndex:ux_receipts_registration" json:"registration_id"`
	EventID        snowflake.ID   `gorm:"not null;index" json:"event_id"`
	Number         string         `gorm:"not null;uniqueIndex:ux_receipts_org_number" json:"number"`
	EventName      string         `gorm:"not null" json:"event_name"`
	AttendeeName   string         `gorm:"not null" json:"attendee_name"`
	AttendeeEmail  string         `gorm:"not null" json:"attendee_email"`
	Currency       string         `gorm:"type:text;not null" json:"currency"`
	AmountTotal    int64          `gorm:"not null;default:0" json:"amount_total"`
	LineItems      datatypes.JSON `gorm:"type:jsonb" json:"line_items"`
	IssuedAt       time.Time      `gorm:"not null" json:"issued_at"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Receipt) TableName() string { return "receipts" }

// Lines decodes the stored line items. Malformed payloads yield nil; the
// issue path is the only writer and keeps the column well formed.
func (r Receipt) Lines() []LineItem {
	if len(r.LineItems) == 0 {
		return nil
	}
	var lines []LineItem
	if err := json.Unmarshal(r.LineItems, &lines); err != nil {
		return nil
	}
	return lines
}

// ReceiptCounter is the per-organization, per-year sequence backing receipt
// numbers. The issuing transaction locks the row, so numbers stay gapless
// under concurrent submissions.
type ReceiptCounter struct {
	OrgID     snowflake.ID `gorm:"primaryKey" json:"organization_id"`
	Year      int          `gorm:"primaryKey" json:"year"`
	Value     int64        `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ReceiptCounter) TableName() string { return "receipt_counters" }
