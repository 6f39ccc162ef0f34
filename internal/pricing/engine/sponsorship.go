package engine

import "strings"

// SponsorshipStatus is the lifecycle state of an issued code.
type SponsorshipStatus string

const (
	SponsorshipPending   SponsorshipStatus = "PENDING"
	SponsorshipActive    SponsorshipStatus = "ACTIVE"
	SponsorshipConsumed  SponsorshipStatus = "CONSUMED"
	SponsorshipCancelled SponsorshipStatus = "CANCELLED"
	SponsorshipExpired   SponsorshipStatus = "EXPIRED"
)

// Coverage limits which part of a breakdown a sponsorship may discount.
type Coverage string

const (
	CoverageAll      Coverage = "ALL"
	CoverageBaseOnly Coverage = "BASE_ONLY"
	CoverageAddOns   Coverage = "ADDONS"
)

// Sponsorship is the read-only snapshot of a code the applier evaluates.
type Sponsorship struct {
	ID              string
	Code            string
	Status          SponsorshipStatus
	TotalAmount     int64
	ConsumedAmount  int64
	Coverage        Coverage
	CoveredAddOnIDs []string
}

// Remaining returns the credit a code can still apply.
func (s Sponsorship) Remaining() int64 {
	remaining := s.TotalAmount - s.ConsumedAmount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Redeemable reports whether the code can contribute to a calculation.
func (s Sponsorship) Redeemable() bool {
	if s.Status != SponsorshipPending && s.Status != SponsorshipActive {
		return false
	}
	return s.Remaining() > 0
}

// LookupFunc resolves a (case-insensitive) code within the event, returning
// nil when no such code exists.
type LookupFunc func(code string) *Sponsorship

// SponsorshipLine is one code's contribution to a breakdown. An unusable
// code is reported with amount 0 and valid false; it never aborts the
// calculation.
type SponsorshipLine struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
	Valid  bool   `json:"valid"`
}

// SponsorshipResult is the outcome of applying sponsorship codes.
type SponsorshipResult struct {
	Sponsorships     []SponsorshipLine
	SponsorshipTotal int64
	Total            int64
}

// ScopeTotals is the running total split into the buckets coverage scopes
// discount against.
type ScopeTotals struct {
	Base   int64
	AddOns []AddOnLine
}

// RunningTotal is the pre-sponsorship amount the codes reduce.
func (t ScopeTotals) RunningTotal() int64 {
	total := t.Base
	for _, line := range t.AddOns {
		total += line.Subtotal
	}
	return total
}

// ApplySponsorships reduces the running total by each code's applicable
// credit, in the order the codes were given: earlier codes consume first and
// later codes see the reduced remainder. A code's applied amount is capped
// by its remaining credit, by its coverage scope, and by what is left of the
// total, so stacked codes are summed yet can never discount below zero. A
// code that cannot be resolved or is not redeemable contributes a zero line
// with valid false.
func ApplySponsorships(codes []string, lookup LookupFunc, totals ScopeTotals) SponsorshipResult {
	remainingBase := totals.Base
	remainingAddOns := make(map[string]int64, len(totals.AddOns))
	addOnOrder := make([]string, 0, len(totals.AddOns))
	for _, line := range totals.AddOns {
		if _, seen := remainingAddOns[line.ID]; !seen {
			addOnOrder = append(addOnOrder, line.ID)
		}
		remainingAddOns[line.ID] += line.Subtotal
	}

	result := SponsorshipResult{Sponsorships: []SponsorshipLine{}}
	runningTotal := totals.RunningTotal()

	for _, rawCode := range codes {
		code := strings.TrimSpace(rawCode)
		line := SponsorshipLine{Code: code}

		var record *Sponsorship
		if lookup != nil && code != "" {
			record = lookup(code)
		}
		if record == nil || !record.Redeemable() {
			result.Sponsorships = append(result.Sponsorships, line)
			continue
		}

		scopeCap := remainingBase
		switch record.Coverage {
		case CoverageBaseOnly:
			scopeCap = remainingBase
		case CoverageAddOns:
			scopeCap = 0
			if len(record.CoveredAddOnIDs) == 0 {
				for _, id := range addOnOrder {
					scopeCap += remainingAddOns[id]
				}
			} else {
				for _, id := range record.CoveredAddOnIDs {
					scopeCap += remainingAddOns[id]
				}
			}
		default:
			scopeCap = remainingBase
			for _, id := range addOnOrder {
				scopeCap += remainingAddOns[id]
			}
		}

		applied := record.Remaining()
		if applied > scopeCap {
			applied = scopeCap
		}
		remaining := runningTotal - result.SponsorshipTotal
		if applied > remaining {
			applied = remaining
		}
		if applied <= 0 {
			result.Sponsorships = append(result.Sponsorships, line)
			continue
		}

		line.Amount = applied
		line.Valid = true
		result.Sponsorships = append(result.Sponsorships, line)
		result.SponsorshipTotal += applied

		// Deduct from the buckets this code covered so later codes see
		// the reduced remainder.
		toDeduct := applied
		switch record.Coverage {
		case CoverageBaseOnly:
			remainingBase -= toDeduct
		case CoverageAddOns:
			ids := record.CoveredAddOnIDs
			if len(ids) == 0 {
				ids = addOnOrder
			}
			for _, id := range ids {
				if toDeduct <= 0 {
					break
				}
				take := remainingAddOns[id]
				if take > toDeduct {
					take = toDeduct
				}
				remainingAddOns[id] -= take
				toDeduct -= take
			}
		default:
			take := remainingBase
			if take > toDeduct {
				take = toDeduct
			}
			remainingBase -= take
			toDeduct -= take
			for _, id := range addOnOrder {
				if toDeduct <= 0 {
					break
				}
				take := remainingAddOns[id]
				if take > toDeduct {
					take = toDeduct
				}
				remainingAddOns[id] -= take
				toDeduct -= take
			}
		}
	}

	result.Total = runningTotal - result.SponsorshipTotal
	if result.Total < 0 {
		result.Total = 0
	}
	return result
}
