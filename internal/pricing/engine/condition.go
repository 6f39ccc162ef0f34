// Package engine computes registration price breakdowns. Every function
// operates on in-memory snapshots supplied by the caller and performs no
// data access, so the package is safe for concurrent use.
package engine

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Operator is a condition comparison operator. Unknown operators evaluate
// to false rather than erroring so malformed stored rules can never break
// a price calculation.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIn          Operator = "in"
	OpIsEmpty     Operator = "is_empty"
	OpIsNotEmpty  Operator = "is_not_empty"
)

// Valid reports whether the operator is a known member of the enum.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpGreaterThan, OpLessThan, OpIn, OpIsEmpty, OpIsNotEmpty:
		return true
	}
	return false
}

// Logic combines the results of a condition list.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Valid reports whether the logic is a known member of the enum.
func (l Logic) Valid() bool {
	return l == LogicAnd || l == LogicOr
}

// Condition is a single boolean predicate over one form field.
type Condition struct {
	FieldID  string   `json:"field_id"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Evaluate resolves the condition against the submitted form data. A missing
// field behaves as an absent value: is_empty holds, equality against any
// concrete value fails, and numeric comparisons fail. Any internal mismatch
// (non-numeric operand, wrong value shape) resolves to false; Evaluate never
// panics or returns an error.
func Evaluate(cond Condition, formData map[string]any) bool {
	var fieldValue any
	var exists bool
	if formData != nil {
		fieldValue, exists = formData[cond.FieldID]
	}
	if exists && fieldValue == nil {
		exists = false
	}

	switch cond.Operator {
	case OpEquals:
		return exists && scalarEqual(fieldValue, cond.Value)
	case OpNotEquals:
		return !exists || !scalarEqual(fieldValue, cond.Value)
	case OpContains:
		return exists && containsValue(fieldValue, cond.Value)
	case OpGreaterThan:
		left, lok := toFloat(fieldValue)
		right, rok := toFloat(cond.Value)
		return exists && lok && rok && left > right
	case OpLessThan:
		left, lok := toFloat(fieldValue)
		right, rok := toFloat(cond.Value)
		return exists && lok && rok && left < right
	case OpIn:
		members, ok := toSlice(cond.Value)
		if !ok || !exists {
			return false
		}
		for _, member := range members {
			if scalarEqual(fieldValue, member) {
				return true
			}
		}
		return false
	case OpIsEmpty:
		return !exists || isEmptyValue(fieldValue)
	case OpIsNotEmpty:
		return exists && !isEmptyValue(fieldValue)
	default:
		// Fail closed on unknown operators.
		return false
	}
}

// EvaluateGroup combines conditions with AND/OR logic. An empty condition
// list always matches: a rule or add-on without conditions is unconditional.
// AND short-circuits on the first false, OR on the first true. Unknown logic
// values are treated as AND.
func EvaluateGroup(conditions []Condition, logic Logic, formData map[string]any) bool {
	if len(conditions) == 0 {
		return true
	}

	if logic == LogicOr {
		for _, cond := range conditions {
			if Evaluate(cond, formData) {
				return true
			}
		}
		return false
	}

	for _, cond := range conditions {
		if !Evaluate(cond, formData) {
			return false
		}
	}
	return true
}

// ValidateConditions rejects conditions that would silently never match:
// unknown operators, blank field ids, and `in` without an array value.
// Write paths call this so persisted rules stay well-formed; evaluation
// still fails closed regardless.
func ValidateConditions(conditions []Condition) error {
	for i, cond := range conditions {
		if strings.TrimSpace(cond.FieldID) == "" {
			return &ValidationError{Field: "conditions", Code: "field_id_required", Message: "condition " + strconv.Itoa(i) + " is missing a field id"}
		}
		if !cond.Operator.Valid() {
			return &ValidationError{Field: "conditions", Code: "unknown_operator", Message: "condition " + strconv.Itoa(i) + " has unknown operator " + strconv.Quote(string(cond.Operator))}
		}
		if cond.Operator == OpIn {
			if _, ok := toSlice(cond.Value); !ok {
				return &ValidationError{Field: "conditions", Code: "in_requires_array", Message: "condition " + strconv.Itoa(i) + " uses `in` without an array value"}
			}
		}
	}
	return nil
}

// scalarEqual compares two scalar values. Numbers compare numerically across
// int/float/json.Number representations; strings and bools compare by value;
// everything else (slices, maps, mixed types) is unequal.
func scalarEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

// containsValue handles both field shapes `contains` sees in practice:
// substring match for text answers and membership for multi-select answers.
func containsValue(fieldValue, condValue any) bool {
	switch fv := fieldValue.(type) {
	case string:
		needle, ok := condValue.(string)
		return ok && strings.Contains(fv, needle)
	case []any:
		for _, member := range fv {
			if scalarEqual(member, condValue) {
				return true
			}
		}
		return false
	case []string:
		needle, ok := condValue.(string)
		if !ok {
			return false
		}
		for _, member := range fv {
			if member == needle {
				return true
			}
		}
		return false
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, member := range s {
			out[i] = member
		}
		return out, true
	}
	return nil, false
}

func isEmptyValue(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case []any:
		return len(value) == 0
	case []string:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	}
	return false
}
