package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"gorm.io/datatypes"
)

// SponsorshipBatch groups the codes issued to one sponsor for one event.
// Coverage and the covered add-on list live here; individual records carry
// the per-code balance.
type SponsorshipBatch struct {
	ID              snowflake.ID             `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID             `gorm:"not null;index" json:"organization_id"`
	EventID         snowflake.ID             `gorm:"not null;index" json:"event_id"`
	ClientID        *snowflake.ID            `gorm:"index" json:"client_id,omitempty"`
	Name            string                   `gorm:"not null" json:"name"`
	CodePrefix      string                   `gorm:"not null" json:"code_prefix"`
	Quantity        int                      `gorm:"not null" json:"quantity"`
	AmountPerCode   int64                    `gorm:"not null" json:"amount_per_code"`
	Currency        string                   `gorm:"type:text" json:"currency,omitempty"`
	Coverage        engine.Coverage          `gorm:"type:text;not null;default:ALL" json:"coverage"`
	CoveredAddOnIDs datatypes.JSON           `gorm:"type:jsonb" json:"covered_add_on_ids,omitempty"`
	ExpiresAt       *time.Time               `gorm:"column:expires_at" json:"expires_at,omitempty"`
	Notes           string                   `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time                `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time                `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SponsorshipBatch) TableName() string { return "sponsorship_batches" }

// CoveredIDs decodes the covered add-on id list.
func (b SponsorshipBatch) CoveredIDs() []string {
	if len(b.CoveredAddOnIDs) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(b.CoveredAddOnIDs, &ids); err != nil {
		return nil
	}
	return ids
}

// SponsorshipRecord is one redeemable code. Codes are stored uppercase and
// matched case-insensitively. consumed_amount only moves through conditional
// updates on the registration commit path.
type SponsorshipRecord struct {
	ID             snowflake.ID             `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID             `gorm:"not null;index" json:"organization_id"`
	BatchID        snowflake.ID             `gorm:"not null;index" json:"batch_id"`
	EventID        snowflake.ID             `gorm:"not null;index:ux_sponsorship_event_code,priority:1" json:"event_id"`
	Code           string                   `gorm:"not null;index:ux_sponsorship_event_code,priority:2" json:"code"`
	Status         engine.SponsorshipStatus `gorm:"type:text;not null;default:PENDING" json:"status"`
	TotalAmount    int64                    `gorm:"not null" json:"total_amount"`
	ConsumedAmount int64                    `gorm:"not null;default:0" json:"consumed_amount"`
	RegistrationID *snowflake.ID            `gorm:"index" json:"registration_id,omitempty"`
	ExpiresAt      *time.Time               `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt      time.Time                `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time                `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SponsorshipRecord) TableName() string { return "sponsorship_records" }

// Remaining returns the unredeemed balance.
func (r SponsorshipRecord) Remaining() int64 {
	remaining := r.TotalAmount - r.ConsumedAmount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SponsorshipConsumption is the append-only redemption ledger. Releases are
// recorded as compensating rows with negative amounts, never deletes.
type SponsorshipConsumption struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID `gorm:"not null;index" json:"organization_id"`
	RecordID       snowflake.ID `gorm:"not null;index" json:"record_id"`
	RegistrationID snowflake.ID `gorm:"not null;index" json:"registration_id"`
	Amount         int64        `gorm:"not null" json:"amount"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (SponsorshipConsumption) TableName() string { return "sponsorship_consumptions" }
