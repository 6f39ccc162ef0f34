// Package cloudmetrics pushes anonymous accounting metrics from self-hosted
// installs to the managed control plane. Everything here degrades to a no-op
// when cloud metrics are disabled so OSS workflows never depend on it.
package cloudmetrics

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// CloudMetrics owns a private registry so accounting series never leak into
// the instance's public /metrics endpoint.
type CloudMetrics struct {
	registry *prometheus.Registry
	pusher   Pusher
	logger   *zap.Logger

	instanceInfo       *prometheus.GaugeVec
	organizationsTotal prometheus.Gauge
	memoryBytes        prometheus.Gauge
	registrations      *prometheus.CounterVec
	receipts           *prometheus.CounterVec
	engineErrors       *prometheus.CounterVec
}

// New builds the accounting metrics set on the given registry. A nil registry
// gets a private one. The instance gauge is set once so every push carries
// the install identity.
func New(registry *prometheus.Registry, pusher Pusher, instanceID, version string, logger *zap.Logger) *CloudMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &CloudMetrics{
		registry: registry,
		pusher:   pusher,
		logger:   logger,
		instanceInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "eventra_instance_info",
			Help: "Static install identity labels.",
		}, []string{"instance_id", "version"}),
		organizationsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eventra_organizations_total",
			Help: "Organizations present on this install.",
		}),
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eventra_memory_bytes",
			Help: "Memory obtained from the OS.",
		}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventra_registrations_created_total",
			Help: "Registrations created by organization.",
		}, []string{"organization"}),
		receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventra_receipts_issued_total",
			Help: "Receipts issued by organization.",
		}, []string{"organization"}),
		engineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventra_pricing_engine_errors_total",
			Help: "Pricing engine failures by organization and operation.",
		}, []string{"organization", "operation"}),
	}

	registry.MustRegister(
		c.instanceInfo,
		c.organizationsTotal,
		c.memoryBytes,
		c.registrations,
		c.receipts,
		c.engineErrors,
	)
	c.instanceInfo.WithLabelValues(normalizeLabel(instanceID), normalizeLabel(version)).Set(1)

	setRecorder(c)
	return c
}

// Push sends the current accounting series through the configured pusher.
func (c *CloudMetrics) Push(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.pusher == nil {
		return errors.New("cloud metrics pusher is not configured")
	}
	return c.pusher.Push(ctx, c.registry)
}

// SetMemoryUsage records memory obtained from the OS in bytes.
func (c *CloudMetrics) SetMemoryUsage(bytes uint64) {
	if c == nil {
		return
	}
	c.memoryBytes.Set(float64(bytes))
}

// SetOrganizationsTotal records the number of organizations on the install.
func (c *CloudMetrics) SetOrganizationsTotal(count int64) {
	if c == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	c.organizationsTotal.Set(float64(count))
}

// RecordRegistrationCreated implements Recorder.
func (c *CloudMetrics) RecordRegistrationCreated(orgID string) {
	if c == nil {
		return
	}
	c.registrations.WithLabelValues(normalizeOrg(orgID)).Inc()
}

// RecordReceiptIssued implements Recorder.
func (c *CloudMetrics) RecordReceiptIssued(orgID string) {
	if c == nil {
		return
	}
	c.receipts.WithLabelValues(normalizeOrg(orgID)).Inc()
}

// RecordEngineError implements Recorder.
func (c *CloudMetrics) RecordEngineError(orgID, operation string) {
	if c == nil {
		return
	}
	c.engineErrors.WithLabelValues(normalizeOrg(orgID), normalizeLabel(operation)).Inc()
}

func normalizeOrg(orgID string) string {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return "unknown"
	}
	return orgID
}
