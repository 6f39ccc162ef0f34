package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workshopCatalog() []AddOn {
	return []AddOn{
		{ID: "workshop-1", Name: "Intro workshop", UnitPrice: 50, Active: true},
		{ID: "dinner", Name: "Speaker dinner", UnitPrice: 80, Active: true},
	}
}

func TestCalculateAddOnsLinearSubtotals(t *testing.T) {
	result, err := CalculateAddOns(workshopCatalog(), []Selection{
		{ID: "workshop-1", Quantity: 2},
		{ID: "dinner", Quantity: 1},
	}, nil)
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, int64(100), result.Items[0].Subtotal) // 50*2
	assert.Equal(t, int64(80), result.Items[1].Subtotal)
	assert.Equal(t, int64(180), result.AddOnTotal)
	// Line order follows selection order.
	assert.Equal(t, "workshop-1", result.Items[0].ID)
	assert.Equal(t, "dinner", result.Items[1].ID)
}

func TestCalculateAddOnsUnknownID(t *testing.T) {
	_, err := CalculateAddOns(workshopCatalog(), []Selection{{ID: "vip-lounge", Quantity: 1}}, nil)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "add_on", nf.Resource)
	assert.Equal(t, "vip-lounge", nf.ID)
}

func TestCalculateAddOnsRejectsInvalidQuantity(t *testing.T) {
	for _, quantity := range []int64{0, -1} {
		_, err := CalculateAddOns(workshopCatalog(), []Selection{{ID: "dinner", Quantity: quantity}}, nil)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "invalid_quantity", verr.Code)
	}
}

func TestCalculateAddOnsRejectsOversizedQuantity(t *testing.T) {
	// A quantity near int64 max would overflow the subtotal multiply into a
	// negative total. The per-registration limit rejects it long before that.
	_, err := CalculateAddOns(workshopCatalog(), []Selection{
		{ID: "dinner", Quantity: 4_000_000_000_000_000_000},
	}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "quantity_too_large", verr.Code)

	_, err = CalculateAddOns(workshopCatalog(), []Selection{
		{ID: "dinner", Quantity: MaxSelectionQuantity + 1},
	}, nil)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "quantity_too_large", verr.Code)

	result, err := CalculateAddOns(workshopCatalog(), []Selection{
		{ID: "dinner", Quantity: MaxSelectionQuantity},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(80*MaxSelectionQuantity), result.AddOnTotal)
}

func TestCalculateAddOnsQuantityLimitIsCumulativePerAddOn(t *testing.T) {
	// Splitting an oversize order across selections of an uncapped add-on
	// must not slip past the limit.
	_, err := CalculateAddOns(workshopCatalog(), []Selection{
		{ID: "dinner", Quantity: 600},
		{ID: "dinner", Quantity: 600},
	}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "quantity_too_large", verr.Code)
}

func TestCalculateAddOnsRejectsInactive(t *testing.T) {
	catalog := []AddOn{{ID: "workshop-1", Name: "Intro workshop", UnitPrice: 50, Active: false}}

	_, err := CalculateAddOns(catalog, []Selection{{ID: "workshop-1", Quantity: 1}}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "add_on_inactive", verr.Code)
}

func TestCalculateAddOnsConditionsGateAvailability(t *testing.T) {
	catalog := []AddOn{{
		ID: "speaker-dinner", Name: "Speaker dinner", UnitPrice: 80, Active: true,
		Conditions:     []Condition{{FieldID: "role", Operator: OpEquals, Value: "speaker"}},
		ConditionLogic: LogicAnd,
	}}

	result, err := CalculateAddOns(catalog, []Selection{{ID: "speaker-dinner", Quantity: 1}}, map[string]any{"role": "speaker"})
	require.NoError(t, err)
	assert.Equal(t, int64(80), result.AddOnTotal)

	_, err = CalculateAddOns(catalog, []Selection{{ID: "speaker-dinner", Quantity: 1}}, map[string]any{"role": "attendee"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "add_on_not_offered", verr.Code)
}

func TestCalculateAddOnsCapacity(t *testing.T) {
	catalog := []AddOn{{
		ID: "workshop-1", Name: "Intro workshop", UnitPrice: 50, Active: true,
		MaxCapacity: int64Ptr(10), RegisteredCount: 8,
	}}

	result, err := CalculateAddOns(catalog, []Selection{{ID: "workshop-1", Quantity: 2}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(100), result.AddOnTotal)

	_, err = CalculateAddOns(catalog, []Selection{{ID: "workshop-1", Quantity: 3}}, nil)
	var capErr *CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "workshop-1", capErr.AddOnID)
	assert.Equal(t, int64(3), capErr.Requested)
	assert.Equal(t, int64(2), capErr.Remaining)
}

func TestCalculateAddOnsCapacityIsCumulativePerRequest(t *testing.T) {
	catalog := []AddOn{{
		ID: "workshop-1", Name: "Intro workshop", UnitPrice: 50, Active: true,
		MaxCapacity: int64Ptr(10), RegisteredCount: 9,
	}}

	// Two selections of the last remaining slot must not both pass.
	_, err := CalculateAddOns(catalog, []Selection{
		{ID: "workshop-1", Quantity: 1},
		{ID: "workshop-1", Quantity: 1},
	}, nil)

	var capErr *CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, int64(2), capErr.Requested)
}

func TestCalculateAddOnsEmptySelection(t *testing.T) {
	result, err := CalculateAddOns(workshopCatalog(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, int64(0), result.AddOnTotal)
}

func int64Ptr(v int64) *int64 {
	return &v
}
