package engine

import "fmt"

// NotFoundError aborts a calculation when a referenced object is absent:
// the event has no pricing configured, or a selection names an unknown
// add-on. No partial breakdown is produced.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + "_not_found"
	}
	return fmt.Sprintf("%s_not_found: %s", e.Resource, e.ID)
}

// ValidationError aborts a calculation when an input is structurally
// unusable: a non-positive quantity, an add-on that is inactive or not
// offered to this registrant, or a malformed condition at write time.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// CapacityExceededError aborts a calculation when a selection would exceed
// an add-on's remaining capacity. The check is a snapshot-time estimate;
// the authoritative reservation happens at commit.
type CapacityExceededError struct {
	AddOnID   string
	Requested int64
	Remaining int64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("add_on_capacity_exceeded: %s requested %d with %d remaining", e.AddOnID, e.Requested, e.Remaining)
}
