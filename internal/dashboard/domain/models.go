package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DayFormat is the bucket key layout used by the rollup table.
const DayFormat = "2006-01-02"

// EventStatRollup is one event's daily slice of the org dashboard. Rows are
// recomputed from the registration tables by the rollup worker; the day key
// is the signup date in UTC, so a cancellation moves the numbers of the day
// the registration was created, not the day it was cancelled.
type EventStatRollup struct {
	OrgID              snowflake.ID `gorm:"primaryKey" json:"organization_id"`
	EventID            snowflake.ID `gorm:"primaryKey" json:"event_id"`
	Day                string       `gorm:"primaryKey;type:text" json:"day"`
	Registrations      int64        `gorm:"not null;default:0" json:"registrations"`
	Confirmed          int64        `gorm:"not null;default:0" json:"confirmed"`
	Pending            int64        `gorm:"not null;default:0" json:"pending"`
	Cancelled          int64        `gorm:"not null;default:0" json:"cancelled"`
	Waitlisted         int64        `gorm:"not null;default:0" json:"waitlisted"`
	Revenue            int64        `gorm:"not null;default:0" json:"revenue"`
	SponsorshipApplied int64        `gorm:"not null;default:0" json:"sponsorship_applied"`
	AddOnUnits         int64        `gorm:"not null;default:0" json:"add_on_units"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (EventStatRollup) TableName() string { return "event_stat_rollups" }

// Overview sums every rollup row the org owns. Revenue counts rows that hold
// a seat and a receipt; waitlisted rows reserved nothing and cancelled rows
// gave everything back.
type Overview struct {
	Events             int64 `json:"events"`
	PublishedEvents    int64 `json:"published_events"`
	Registrations      int64 `json:"registrations"`
	Confirmed          int64 `json:"confirmed"`
	Pending            int64 `json:"pending"`
	Cancelled          int64 `json:"cancelled"`
	Waitlisted         int64 `json:"waitlisted"`
	Revenue            int64 `json:"revenue"`
	SponsorshipApplied int64 `json:"sponsorship_applied"`
	AddOnUnits         int64 `json:"add_on_units"`
}

// SeriesPoint is one day of the registration series. Days with no rollup row
// produce no point.
type SeriesPoint struct {
	Day                string `json:"day"`
	Registrations      int64  `json:"registrations"`
	Confirmed          int64  `json:"confirmed"`
	Cancelled          int64  `json:"cancelled"`
	Revenue            int64  `json:"revenue"`
	SponsorshipApplied int64  `json:"sponsorship_applied"`
	AddOnUnits         int64  `json:"add_on_units"`
}

// AddOnStat ranks an add-on by committed units.
type AddOnStat struct {
	AddOnID string `json:"add_on_id"`
	Name    string `json:"name"`
	Units   int64  `json:"units"`
	Revenue int64  `json:"revenue"`
}

// BatchUtilization reports how much of a sponsorship batch has been redeemed.
// Utilization is consumed over total, 0 when the batch has no issued value.
type BatchUtilization struct {
	BatchID        string  `json:"batch_id"`
	Name           string  `json:"name"`
	Coverage       string  `json:"coverage"`
	Codes          int64   `json:"codes"`
	RedeemedCodes  int64   `json:"redeemed_codes"`
	TotalAmount    int64   `json:"total_amount"`
	ConsumedAmount int64   `json:"consumed_amount"`
	Utilization    float64 `json:"utilization"`
}
