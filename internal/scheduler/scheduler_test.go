package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/eventra/internal/clock"
	obsmetrics "github.com/smallbiznis/eventra/internal/observability/metrics"
	"go.uber.org/zap"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return &Scheduler{
		log:   zap.NewNop(),
		genID: node,
		clock: clock.NewFakeClock(time.Time{}),
		cfg:   DefaultConfig(),
	}
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "eventra",
		Environment: "test",
	})

	s := newTestScheduler(t)
	err := s.runJob(context.Background(), "timeout_job", 0, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "eventra",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "eventra_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "eventra",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "eventra_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestRunJobRecoversPanic(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "eventra",
		Environment: "test",
	})

	s := newTestScheduler(t)
	err := s.runJob(context.Background(), "panic_job", 0, time.Second, func(ctx context.Context) error {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected an error from a panicking job")
	}
	if !strings.Contains(err.Error(), "job panicked") {
		t.Fatalf("expected panic error, got %v", err)
	}

	errorLabels := map[string]string{
		"service": "eventra",
		"env":     "test",
		"job":     "panic_job",
		"reason":  obsmetrics.SchedulerJobReasonUnknown,
	}
	if got := getCounterValue(t, registry, "eventra_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

type stubLocker struct {
	ok       bool
	err      error
	tries    int
	released bool
}

func (l *stubLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.tries++
	if l.err != nil {
		return "", false, l.err
	}
	return "token", l.ok, nil
}

func (l *stubLocker) Release(ctx context.Context, key, token string) error {
	l.released = true
	return nil
}

func TestRunJobSkipsWhenLockHeldElsewhere(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "eventra",
		Environment: "test",
	})

	s := newTestScheduler(t)
	locker := &stubLocker{ok: false}
	s.locker = locker

	ran := false
	err := s.runJob(context.Background(), "locked_job", 0, time.Second, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ran {
		t.Fatal("job body must not run while the lease is held elsewhere")
	}
	if locker.tries != 1 {
		t.Fatalf("expected one lock attempt, got %d", locker.tries)
	}

	deferredLabels := map[string]string{
		"service": "eventra",
		"env":     "test",
		"job":     "locked_job",
		"reason":  obsmetrics.SchedulerBatchDeferredReasonLockHeld,
	}
	if got := getCounterValue(t, registry, "eventra_scheduler_batch_deferred_total", deferredLabels); got != 1 {
		t.Fatalf("expected deferred count 1, got %v", got)
	}
}

func TestRunJobProceedsWhenLockBackendFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "eventra",
		Environment: "test",
	})

	s := newTestScheduler(t)
	s.locker = &stubLocker{err: errors.New("redis down")}

	ran := false
	err := s.runJob(context.Background(), "failopen_job", 0, time.Second, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !ran {
		t.Fatal("job must run when the lease backend is unavailable")
	}
}

func TestRunJobReleasesLockAfterRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "eventra",
		Environment: "test",
	})

	s := newTestScheduler(t)
	locker := &stubLocker{ok: true}
	s.locker = locker

	err := s.runJob(context.Background(), "held_job", 0, time.Second, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !locker.released {
		t.Fatal("expected the lease to be released after the run")
	}
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
