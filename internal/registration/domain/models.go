package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusCancelled  Status = "CANCELLED"
	StatusWaitlisted Status = "WAITLISTED"
)

// Registration is one attendee's committed signup. The stored breakdown is
// the engine output the commit actually reserved against; it never changes
// after the transaction, even if pricing configuration later does.
type Registration struct {
	ID               snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID            snowflake.ID   `gorm:"not null;uniqueIndex:ux_registrations_org_code,priority:1" json:"organization_id"`
	EventID          snowflake.ID   `gorm:"not null;index" json:"event_id"`
	FormID           *snowflake.ID  `gorm:"index" json:"form_id,omitempty"`
	AttendeeName     string         `gorm:"not null" json:"attendee_name"`
	AttendeeEmail    string         `gorm:"not null" json:"attendee_email"`
	FormData         datatypes.JSON `gorm:"type:jsonb" json:"form_data,omitempty"`
	Status           Status         `gorm:"type:text;not null;default:PENDING" json:"status"`
	Breakdown        datatypes.JSON `gorm:"type:jsonb" json:"breakdown,omitempty"`
	TotalAmount      int64          `gorm:"not null;default:0" json:"total_amount"`
	Currency         string         `gorm:"type:text" json:"currency,omitempty"`
	SponsorshipCodes datatypes.JSON `gorm:"type:jsonb" json:"sponsorship_codes,omitempty"`
	ConfirmationCode string         `gorm:"not null;uniqueIndex:ux_registrations_org_code,priority:2" json:"confirmation_code"`
	ReceiptID        *snowflake.ID  `gorm:"index" json:"receipt_id,omitempty"`
	CancelledAt      *time.Time     `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Registration) TableName() string { return "registrations" }

// BreakdownValue decodes the stored breakdown. Malformed payloads yield nil;
// the commit path is the only writer.
func (r Registration) BreakdownValue() *engine.Breakdown {
	if len(r.Breakdown) == 0 {
		return nil
	}
	var breakdown engine.Breakdown
	if err := json.Unmarshal(r.Breakdown, &breakdown); err != nil {
		return nil
	}
	return &breakdown
}

// CodeValues decodes the sponsorship codes stored with the registration.
func (r Registration) CodeValues() []string {
	if len(r.SponsorshipCodes) == 0 {
		return nil
	}
	var codes []string
	if err := json.Unmarshal(r.SponsorshipCodes, &codes); err != nil {
		return nil
	}
	return codes
}

// RegistrationAddOn is one reserved add-on line, kept as rows rather than
// JSON so cancellation can release exact quantities and dashboards can
// aggregate units per item.
type RegistrationAddOn struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID `gorm:"not null;index" json:"organization_id"`
	RegistrationID snowflake.ID `gorm:"not null;index" json:"registration_id"`
	EventID        snowflake.ID `gorm:"not null;index" json:"event_id"`
	AddOnID        snowflake.ID `gorm:"not null;index" json:"add_on_id"`
	Name           string       `gorm:"not null" json:"name"`
	Quantity       int64        `gorm:"not null" json:"quantity"`
	UnitPrice      int64        `gorm:"not null" json:"unit_price"`
	Subtotal       int64        `gorm:"not null" json:"subtotal"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (RegistrationAddOn) TableName() string { return "registration_add_ons" }

// RegistrationSettings is the per-organization registration policy row,
// seeded at provisioning time.
type RegistrationSettings struct {
	OrgID                snowflake.ID `gorm:"primaryKey" json:"organization_id"`
	RequireReview        bool         `gorm:"not null;default:false" json:"require_review"`
	WaitlistEnabled      bool         `gorm:"not null;default:false" json:"waitlist_enabled"`
	DefaultCurrency      string       `gorm:"type:text;not null;default:USD" json:"default_currency"`
	ReceiptNumberPattern string       `gorm:"type:text" json:"receipt_number_pattern,omitempty"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (RegistrationSettings) TableName() string { return "registration_settings" }
