package engine

// Snapshot is the read-only pricing configuration a calculation runs
// against: the event's base price and currency, its rules, and its add-on
// catalog. Callers assemble it from storage; the engine never fetches data.
type Snapshot struct {
	BasePrice int64
	Currency  string
	Rules     []Rule
	AddOns    []AddOn
}

// Request carries one registrant's inputs to a calculation.
type Request struct {
	FormData         map[string]any `json:"form_data"`
	SelectedAddOns   []Selection    `json:"selected_add_ons"`
	SponsorshipCodes []string       `json:"sponsorship_codes"`
}

// Breakdown is the itemized result of a calculation. It is a pure value:
// identical inputs produce identical breakdowns, and nothing about it is a
// reservation.
type Breakdown struct {
	BasePrice           int64             `json:"base_price"`
	AppliedRules        []AppliedRule     `json:"applied_rules"`
	CalculatedBasePrice int64             `json:"calculated_base_price"`
	AddOnItems          []AddOnLine       `json:"add_on_items"`
	AddOnTotal          int64             `json:"add_on_total"`
	Subtotal            int64             `json:"subtotal"`
	Sponsorships        []SponsorshipLine `json:"sponsorships"`
	SponsorshipTotal    int64             `json:"sponsorship_total"`
	Total               int64             `json:"total"`
	Currency            string            `json:"currency"`
}

// Calculate composes rule selection, add-on pricing, and sponsorship
// application into one breakdown. A nil snapshot means the event has no
// pricing configured and is a NotFoundError. Add-on failures abort the whole
// calculation; sponsorship invalidity degrades to zero-value lines. The
// invariants subtotal = calculated base + add-on total and
// total = max(0, subtotal - sponsorship total) always hold.
func Calculate(snapshot *Snapshot, lookup LookupFunc, req Request) (Breakdown, error) {
	if snapshot == nil {
		return Breakdown{}, &NotFoundError{Resource: "pricing"}
	}

	ruleResult := SelectRule(snapshot.Rules, req.FormData, snapshot.BasePrice)

	addOnResult, err := CalculateAddOns(snapshot.AddOns, req.SelectedAddOns, req.FormData)
	if err != nil {
		return Breakdown{}, err
	}

	subtotal := ruleResult.CalculatedBasePrice + addOnResult.AddOnTotal

	sponsorshipResult := ApplySponsorships(req.SponsorshipCodes, lookup, ScopeTotals{
		Base:   ruleResult.CalculatedBasePrice,
		AddOns: addOnResult.Items,
	})

	return Breakdown{
		BasePrice:           snapshot.BasePrice,
		AppliedRules:        ruleResult.AppliedRules,
		CalculatedBasePrice: ruleResult.CalculatedBasePrice,
		AddOnItems:          addOnResult.Items,
		AddOnTotal:          addOnResult.AddOnTotal,
		Subtotal:            subtotal,
		Sponsorships:        sponsorshipResult.Sponsorships,
		SponsorshipTotal:    sponsorshipResult.SponsorshipTotal,
		Total:               sponsorshipResult.Total,
		Currency:            snapshot.Currency,
	}, nil
}
