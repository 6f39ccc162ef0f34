package guard

import (
	"errors"
	"time"
)

var (
	ErrInvalidThreshold = errors.New("invalid_threshold")
	ErrEventUncapped    = errors.New("event_uncapped")
	ErrBelowThreshold   = errors.New("capacity_below_threshold")
	ErrOutboxStalled    = errors.New("outbox_stalled")
)

// EnsureCapacityAlertWarranted re-checks a fetched candidate before an alert
// is raised. It guards against drift between the candidate scan and the
// insert.
func EnsureCapacityAlertWarranted(maxCapacity, registeredCount int64, thresholdPct float64) error {
	if thresholdPct <= 0 || thresholdPct > 100 {
		return ErrInvalidThreshold
	}
	if maxCapacity <= 0 {
		return ErrEventUncapped
	}
	if float64(registeredCount)*100 < float64(maxCapacity)*thresholdPct {
		return ErrBelowThreshold
	}
	return nil
}

// EnsureOutboxFresh reports a stall once the oldest unpublished outbox event
// is older than the threshold. A zero threshold disables the check.
func EnsureOutboxFresh(oldestAge, stallThreshold time.Duration) error {
	if stallThreshold <= 0 {
		return nil
	}
	if oldestAge >= stallThreshold {
		return ErrOutboxStalled
	}
	return nil
}
