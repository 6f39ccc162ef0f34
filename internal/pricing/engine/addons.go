package engine

// AddOn is one entry of an event's paid extras catalog.
type AddOn struct {
	ID              string
	Name            string
	UnitPrice       int64
	Currency        string
	MaxCapacity     *int64
	RegisteredCount int64
	Conditions      []Condition
	ConditionLogic  Logic
	Active          bool
}

// Remaining returns how many units are still available, or -1 when the
// add-on is uncapped.
func (a AddOn) Remaining() int64 {
	if a.MaxCapacity == nil {
		return -1
	}
	remaining := *a.MaxCapacity - a.RegisteredCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MaxSelectionQuantity bounds the cumulative quantity a registration may
// request per add-on. It keeps client-supplied quantities far away from
// int64 overflow when multiplied by a unit price.
const MaxSelectionQuantity = 1000

// Selection is a requested add-on with a quantity.
type Selection struct {
	ID       string `json:"id"`
	Quantity int64  `json:"quantity"`
}

// AddOnLine is one priced selection in a breakdown.
type AddOnLine struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

// AddOnResult is the outcome of add-on calculation.
type AddOnResult struct {
	Items      []AddOnLine
	AddOnTotal int64
}

// CalculateAddOns prices the requested selections against the catalog. Line
// order follows selection order. Structural problems abort the whole
// calculation: an unknown id is a NotFoundError, a non-positive quantity, a
// quantity past MaxSelectionQuantity, or an add-on that is inactive or gated
// away from this registrant is a ValidationError, and a selection past
// remaining capacity is a CapacityExceededError. Capacity is checked cumulatively across the request
// so repeated selections of one add-on cannot slip past the cap; the check
// remains an estimate and commit re-verifies it transactionally.
func CalculateAddOns(catalog []AddOn, selections []Selection, formData map[string]any) (AddOnResult, error) {
	index := make(map[string]*AddOn, len(catalog))
	for i := range catalog {
		item := &catalog[i]
		if _, ok := index[item.ID]; !ok {
			index[item.ID] = item
		}
	}

	result := AddOnResult{Items: []AddOnLine{}}
	requested := make(map[string]int64, len(selections))

	for _, selection := range selections {
		item, ok := index[selection.ID]
		if !ok {
			return AddOnResult{}, &NotFoundError{Resource: "add_on", ID: selection.ID}
		}
		if selection.Quantity <= 0 {
			return AddOnResult{}, &ValidationError{
				Field:   "quantity",
				Code:    "invalid_quantity",
				Message: "add-on " + selection.ID + " requires a positive quantity",
			}
		}
		if selection.Quantity > MaxSelectionQuantity {
			return AddOnResult{}, &ValidationError{
				Field:   "quantity",
				Code:    "quantity_too_large",
				Message: "add-on " + selection.ID + " exceeds the per-registration quantity limit",
			}
		}
		if !item.Active {
			return AddOnResult{}, &ValidationError{
				Field:   "add_on_id",
				Code:    "add_on_inactive",
				Message: "add-on " + selection.ID + " is not active",
			}
		}
		if !EvaluateGroup(item.Conditions, item.ConditionLogic, formData) {
			return AddOnResult{}, &ValidationError{
				Field:   "add_on_id",
				Code:    "add_on_not_offered",
				Message: "add-on " + selection.ID + " is not offered for this registration",
			}
		}

		requested[item.ID] += selection.Quantity
		if requested[item.ID] > MaxSelectionQuantity {
			return AddOnResult{}, &ValidationError{
				Field:   "quantity",
				Code:    "quantity_too_large",
				Message: "add-on " + selection.ID + " exceeds the per-registration quantity limit",
			}
		}
		if item.MaxCapacity != nil && item.RegisteredCount+requested[item.ID] > *item.MaxCapacity {
			return AddOnResult{}, &CapacityExceededError{
				AddOnID:   item.ID,
				Requested: requested[item.ID],
				Remaining: item.Remaining(),
			}
		}

		line := AddOnLine{
			ID:        item.ID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  selection.Quantity,
			Subtotal:  item.UnitPrice * selection.Quantity,
		}
		result.Items = append(result.Items, line)
		result.AddOnTotal += line.Subtotal
	}

	return result, nil
}
