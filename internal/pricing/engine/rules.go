package engine

// Rule is a conditional override of an event's base registration price.
type Rule struct {
	ID             string
	Name           string
	Description    string
	Price          int64
	Conditions     []Condition
	ConditionLogic Logic
	Priority       int
	Active         bool
}

// AppliedRule records the single rule that won a calculation. Effect is the
// signed difference against the configured base price.
type AppliedRule struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Effect   int64  `json:"effect"`
	Reason   string `json:"reason,omitempty"`
}

// RuleResult is the outcome of rule selection.
type RuleResult struct {
	CalculatedBasePrice int64
	AppliedRules        []AppliedRule
}

// SelectRule picks the winning price rule: among active rules whose condition
// groups match the form data, the highest priority wins and ties keep the
// first-declared rule. Winner takes all; rule prices never stack. With no
// match the configured base price stands and no rule is reported.
func SelectRule(rules []Rule, formData map[string]any, basePrice int64) RuleResult {
	var winner *Rule
	for i := range rules {
		rule := &rules[i]
		if !rule.Active {
			continue
		}
		if !EvaluateGroup(rule.Conditions, rule.ConditionLogic, formData) {
			continue
		}
		if winner == nil || rule.Priority > winner.Priority {
			winner = rule
		}
	}

	if winner == nil {
		return RuleResult{
			CalculatedBasePrice: basePrice,
			AppliedRules:        []AppliedRule{},
		}
	}

	return RuleResult{
		CalculatedBasePrice: winner.Price,
		AppliedRules: []AppliedRule{{
			RuleID:   winner.ID,
			RuleName: winner.Name,
			Effect:   winner.Price - basePrice,
		}},
	}
}
