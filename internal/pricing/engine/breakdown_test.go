package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBaseOnly(t *testing.T) {
	snapshot := &Snapshot{BasePrice: 300, Currency: "EUR"}

	breakdown, err := Calculate(snapshot, nil, Request{})
	require.NoError(t, err)

	assert.Equal(t, int64(300), breakdown.BasePrice)
	assert.Equal(t, int64(300), breakdown.CalculatedBasePrice)
	assert.Empty(t, breakdown.AppliedRules)
	assert.Empty(t, breakdown.AddOnItems)
	assert.Equal(t, int64(0), breakdown.AddOnTotal)
	assert.Equal(t, int64(300), breakdown.Subtotal)
	assert.Equal(t, int64(0), breakdown.SponsorshipTotal)
	assert.Equal(t, int64(300), breakdown.Total)
	assert.Equal(t, "EUR", breakdown.Currency)
}

func TestCalculateStudentRule(t *testing.T) {
	snapshot := &Snapshot{
		BasePrice: 300,
		Currency:  "EUR",
		Rules: []Rule{{
			ID: "rule-student", Name: "Student", Price: 150, Priority: 1, Active: true,
			Conditions:     []Condition{{FieldID: "status", Operator: OpEquals, Value: "student"}},
			ConditionLogic: LogicAnd,
		}},
	}

	breakdown, err := Calculate(snapshot, nil, Request{FormData: map[string]any{"status": "student"}})
	require.NoError(t, err)

	assert.Equal(t, int64(150), breakdown.CalculatedBasePrice)
	require.Len(t, breakdown.AppliedRules, 1)
	assert.Equal(t, "rule-student", breakdown.AppliedRules[0].RuleID)
	assert.Equal(t, int64(-150), breakdown.AppliedRules[0].Effect)
	assert.Equal(t, int64(150), breakdown.Total)
}

func TestCalculateWithAddOns(t *testing.T) {
	snapshot := &Snapshot{
		BasePrice: 200,
		Currency:  "EUR",
		AddOns:    []AddOn{{ID: "workshop-1", Name: "Workshop", UnitPrice: 50, Active: true}},
	}

	breakdown, err := Calculate(snapshot, nil, Request{
		SelectedAddOns: []Selection{{ID: "workshop-1", Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(100), breakdown.AddOnTotal)
	assert.Equal(t, int64(300), breakdown.Subtotal)
	assert.Equal(t, int64(300), breakdown.Total)
}

func TestCalculateWithSponsorship(t *testing.T) {
	snapshot := &Snapshot{BasePrice: 300, Currency: "EUR"}
	lookup := lookupFor(Sponsorship{
		ID: "sp-1", Code: "SPONSOR123", Status: SponsorshipActive, TotalAmount: 150, Coverage: CoverageAll,
	})

	breakdown, err := Calculate(snapshot, lookup, Request{SponsorshipCodes: []string{"SPONSOR123"}})
	require.NoError(t, err)

	assert.Equal(t, int64(150), breakdown.SponsorshipTotal)
	assert.Equal(t, int64(150), breakdown.Total)
}

func TestCalculateSponsorshipCappedAtSubtotal(t *testing.T) {
	snapshot := &Snapshot{BasePrice: 100, Currency: "EUR"}
	lookup := lookupFor(Sponsorship{
		ID: "sp-1", Code: "GENEROUS", Status: SponsorshipActive, TotalAmount: 200, Coverage: CoverageAll,
	})

	breakdown, err := Calculate(snapshot, lookup, Request{SponsorshipCodes: []string{"GENEROUS"}})
	require.NoError(t, err)

	assert.Equal(t, int64(100), breakdown.SponsorshipTotal) // capped at the subtotal
	assert.Equal(t, int64(0), breakdown.Total)
}

func TestCalculatePriorityBeatsDeclarationOrder(t *testing.T) {
	lowFirst := &Snapshot{
		BasePrice: 300,
		Currency:  "EUR",
		Rules: []Rule{
			{ID: "rule-low", Name: "Low", Price: 250, Priority: 1, Active: true},
			{ID: "rule-high", Name: "High", Price: 100, Priority: 10, Active: true},
		},
	}
	highFirst := &Snapshot{
		BasePrice: 300,
		Currency:  "EUR",
		Rules:     []Rule{lowFirst.Rules[1], lowFirst.Rules[0]},
	}

	for _, snapshot := range []*Snapshot{lowFirst, highFirst} {
		breakdown, err := Calculate(snapshot, nil, Request{})
		require.NoError(t, err)
		require.Len(t, breakdown.AppliedRules, 1)
		assert.Equal(t, "rule-high", breakdown.AppliedRules[0].RuleID)
		assert.Equal(t, int64(100), breakdown.Total)
	}
}

func TestCalculateMissingPricing(t *testing.T) {
	_, err := Calculate(nil, nil, Request{})

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "pricing", nf.Resource)
}

func TestCalculateAddOnFailureAbortsWholeCalculation(t *testing.T) {
	snapshot := &Snapshot{
		BasePrice: 300,
		Currency:  "EUR",
		AddOns:    []AddOn{{ID: "workshop-1", Name: "Workshop", UnitPrice: 50, Active: true}},
	}

	breakdown, err := Calculate(snapshot, nil, Request{
		SelectedAddOns: []Selection{{ID: "unknown", Quantity: 1}},
	})
	require.Error(t, err)
	assert.Zero(t, breakdown) // no partial breakdown
}

func TestCalculateDeterministic(t *testing.T) {
	capacity := int64(30)
	snapshot := &Snapshot{
		BasePrice: 300,
		Currency:  "EUR",
		Rules: []Rule{
			{
				ID: "rule-student", Name: "Student", Price: 150, Priority: 5, Active: true,
				Conditions:     []Condition{{FieldID: "status", Operator: OpEquals, Value: "student"}},
				ConditionLogic: LogicAnd,
			},
			{
				ID: "rule-member", Name: "Member", Price: 200, Priority: 1, Active: true,
				Conditions:     []Condition{{FieldID: "member", Operator: OpEquals, Value: true}},
				ConditionLogic: LogicAnd,
			},
		},
		AddOns: []AddOn{
			{ID: "workshop-1", Name: "Workshop", UnitPrice: 50, Active: true, MaxCapacity: &capacity, RegisteredCount: 3},
			{ID: "dinner", Name: "Dinner", UnitPrice: 80, Active: true},
		},
	}
	lookup := lookupFor(
		Sponsorship{ID: "sp-1", Code: "SPONSOR123", Status: SponsorshipActive, TotalAmount: 120, Coverage: CoverageAll},
		Sponsorship{ID: "sp-2", Code: "DEAD", Status: SponsorshipCancelled, TotalAmount: 500, Coverage: CoverageAll},
	)
	request := Request{
		FormData:         map[string]any{"status": "student", "member": true},
		SelectedAddOns:   []Selection{{ID: "workshop-1", Quantity: 2}, {ID: "dinner", Quantity: 1}},
		SponsorshipCodes: []string{"SPONSOR123", "DEAD"},
	}

	first, err := Calculate(snapshot, lookup, request)
	require.NoError(t, err)
	second, err := Calculate(snapshot, lookup, request)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON)) // byte-identical breakdowns

	// 150 (student rule) + 100 + 80 add-ons = 330, minus 120 sponsorship.
	assert.Equal(t, int64(330), first.Subtotal)
	assert.Equal(t, int64(210), first.Total)
}
