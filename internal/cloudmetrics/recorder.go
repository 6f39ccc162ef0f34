package cloudmetrics

import (
	"strings"
	"sync"
)

// Recorder receives domain accounting events. The package default is a
// no-op so call sites never need to know whether cloud metrics are enabled.
type Recorder interface {
	RecordRegistrationCreated(orgID string)
	RecordReceiptIssued(orgID string)
	RecordEngineError(orgID, operation string)
}

type noopRecorder struct{}

func (noopRecorder) RecordRegistrationCreated(string) {}
func (noopRecorder) RecordReceiptIssued(string)       {}
func (noopRecorder) RecordEngineError(string, string) {}

var (
	activeRecorder Recorder = noopRecorder{}
	recorderMu     sync.RWMutex
)

func setRecorder(rec Recorder) {
	if rec == nil {
		return
	}
	recorderMu.Lock()
	activeRecorder = rec
	recorderMu.Unlock()
}

// RecordRegistrationCreated counts a confirmed registration for the org.
func RecordRegistrationCreated(orgID string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordRegistrationCreated(orgID)
}

// RecordReceiptIssued counts an issued receipt for the org.
func RecordReceiptIssued(orgID string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordReceiptIssued(orgID)
}

// RecordEngineError counts a pricing engine failure by operation.
func RecordEngineError(orgID, operation string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordEngineError(orgID, operation)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return strings.ToLower(value)
}
