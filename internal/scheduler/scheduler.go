package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/smallbiznis/eventra/internal/alert/domain"
	auditdomain "github.com/smallbiznis/eventra/internal/audit/domain"
	auditcontext "github.com/smallbiznis/eventra/internal/auditcontext"
	"github.com/smallbiznis/eventra/internal/authorization"
	"github.com/smallbiznis/eventra/internal/clock"
	"github.com/smallbiznis/eventra/internal/dashboard/rollup"
	obsmetrics "github.com/smallbiznis/eventra/internal/observability/metrics"
	"github.com/smallbiznis/eventra/internal/provisioning"
	"github.com/smallbiznis/eventra/internal/ratelimit"
	"github.com/smallbiznis/eventra/internal/scheduler/guard"
	sponsorshipdomain "github.com/smallbiznis/eventra/internal/sponsorship/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	SponsorshipSvc sponsorshipdomain.Service
	AlertSvc       alertdomain.Service
	AuditSvc       auditdomain.Service

	AuthzSvc     authorization.Service
	Provisioning *provisioning.Consumer
	RollupSvc    *rollup.Service   `optional:"true"`
	Locker       *ratelimit.Locker `optional:"true"`
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       Config `optional:"true"`
}

// jobLocker is the slice of ratelimit.Locker the scheduler needs for job
// leases. Tests stub it directly.
type jobLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Scheduler struct {
	db             *gorm.DB
	log            *zap.Logger
	cfg            Config
	genID          *snowflake.Node
	clock          clock.Clock
	sponsorshipSvc sponsorshipdomain.Service
	alertSvc       alertdomain.Service
	auditSvc       auditdomain.Service
	authzSvc       authorization.Service
	provisioning   *provisioning.Consumer
	rollupSvc      *rollup.Service
	locker         jobLocker
}

type auditEvent struct {
	OrgID          snowflake.ID
	Action         string
	TargetType     string
	TargetID       string
	EventID        string
	RegistrationID string
	Metadata       map[string]any
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.SponsorshipSvc == nil || p.AlertSvc == nil || p.GenID == nil || p.AuditSvc == nil || p.AuthzSvc == nil || p.Clock == nil || p.Provisioning == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	s := &Scheduler{
		db:             p.DB,
		log:            p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:            cfg,
		genID:          p.GenID,
		clock:          p.Clock,
		sponsorshipSvc: p.SponsorshipSvc,
		alertSvc:       p.AlertSvc,
		auditSvc:       p.AuditSvc,
		authzSvc:       p.AuthzSvc,
		provisioning:   p.Provisioning,
		rollupSvc:      p.RollupSvc,
	}
	// Assigning a nil *Locker directly would make the interface non-nil.
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")

	release, acquired, lockErr := s.acquireJobLock(ctx, name)
	if lockErr != nil {
		// A broken lease backend must not stop maintenance.
		s.logger(ctx).Warn("job lock unavailable, proceeding without it",
			zap.String("job", name),
			zap.Error(lockErr),
		)
	} else if !acquired {
		obsmetrics.Scheduler().IncBatchDeferred(name, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		s.logger(ctx).Debug("job lock held elsewhere, skipping run", zap.String("job", name))
		return nil
	}
	if release != nil {
		defer release()
	}

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := s.runGuarded(ctx, fn)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// Deadline overruns are soft failures, the next tick picks the work up.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// runGuarded keeps a panicking job from taking down the whole run loop.
func (s *Scheduler) runGuarded(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			s.logger(ctx).Error("scheduler job panic",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	return fn(ctx)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"sponsorship_expiry", s.isJobEnabled("sponsorship_expiry"), func(ctx context.Context) error {
			return s.runJob(ctx, "sponsorship_expiry", s.cfg.BatchSize, 30*time.Second, s.SponsorshipExpiryJob)
		}},
		{"capacity_alerts", s.isJobEnabled("capacity_alerts"), func(ctx context.Context) error {
			return s.runJob(ctx, "capacity_alerts", s.cfg.BatchSize, 30*time.Second, s.CapacityAlertsJob)
		}},
		{"provisioning", s.isJobEnabled("provisioning"), func(ctx context.Context) error {
			return s.runJob(ctx, "provisioning", s.cfg.BatchSize, 30*time.Second, s.ProvisioningJob)
		}},
		{"session_cleanup", s.isJobEnabled("session_cleanup"), func(ctx context.Context) error {
			return s.runJob(ctx, "session_cleanup", s.cfg.BatchSize, 30*time.Second, s.SessionCleanupJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	if s.rollupSvc != nil && s.isJobEnabled("dashboard_rollup") {
		err = errors.Join(err, s.runJob(parent, "dashboard_rollup", s.cfg.BatchSize, 5*time.Minute, s.DashboardRollupJob))
	}

	if s.isJobEnabled("outbox_watchdog") {
		err = errors.Join(err, s.runJob(parent, "outbox_watchdog", 1, 10*time.Second, s.OutboxWatchdogJob))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// If EnabledJobs is empty, all jobs are enabled by default (monolith mode)
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// SponsorshipExpiryJob flips past-expiry sponsorship codes to EXPIRED.
// Pricing already treats lapsed windows as expired on read, so the sweep
// only catches the stored status up.
func (s *Scheduler) SponsorshipExpiryJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "sponsorship_expiry", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()

	expired, err := s.sponsorshipSvc.ExpireDue(ctx, now)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.sponsorship_expiry.failed", "sponsorship_expiry", 0, err)
		return err
	}
	run.AddProcessed(int(expired))
	obsmetrics.Scheduler().AddBatchProcessed("sponsorship_expiry", "sponsorship_records", int(expired))
	return nil
}

// CapacityAlertsJob raises alerts for published events at or over the
// registration threshold and resolves alerts for events that recovered.
func (s *Scheduler) CapacityAlertsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "capacity_alerts", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()
	threshold := s.cfg.CapacityThresholdPct
	var jobErr error

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		candidates, err := s.alertSvc.FindCandidates(ctx, threshold, s.cfg.BatchSize)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.capacity_alerts.fetch.failed", "capacity_alerts", 0, err)
			return errors.Join(jobErr, err)
		}
		if len(candidates) == 0 {
			break
		}

		raisedAny := false
		for _, candidate := range candidates {
			if err := guard.EnsureCapacityAlertWarranted(candidate.MaxCapacity, candidate.RegisteredCount, threshold); err != nil {
				s.logSchedulerError(ctx, run, "scheduler.capacity_alerts.guard.failed", "capacity_alerts", candidate.OrgID, err,
					zap.String("event_id", candidate.EventID.String()),
				)
				jobErr = errors.Join(jobErr, err)
				continue
			}
			if err := s.authorizeSystem(ctx, candidate.OrgID, authorization.ObjectEvent, authorization.ActionEventCapacityAlert); err != nil {
				jobErr = errors.Join(jobErr, err)
				continue
			}

			raised, err := s.alertSvc.Raise(ctx, candidate, threshold, now)
			if err != nil {
				s.logSchedulerError(ctx, run, "scheduler.capacity_alerts.raise.failed", "capacity_alerts", candidate.OrgID, err,
					zap.String("event_id", candidate.EventID.String()),
				)
				jobErr = errors.Join(jobErr, err)
				continue
			}
			if !raised {
				continue
			}
			raisedAny = true
			run.AddProcessed(1)

			alertCtx := s.withAuditContext(ctx, candidate.EventID.String(), "")
			s.emitAuditEvent(alertCtx, auditEvent{
				OrgID:      candidate.OrgID,
				Action:     "event.capacity_alert_raised",
				TargetType: "event",
				TargetID:   candidate.EventID.String(),
				EventID:    candidate.EventID.String(),
				Metadata: map[string]any{
					"registered_count": candidate.RegisteredCount,
					"max_capacity":     candidate.MaxCapacity,
					"threshold_pct":    threshold,
				},
			})
		}
		if !raisedAny {
			// A pass with no progress would refetch the same rows; retry next run.
			break
		}
	}

	resolved, err := s.alertSvc.ResolveRecovered(ctx, threshold, now)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.capacity_alerts.resolve.failed", "capacity_alerts", 0, err)
		jobErr = errors.Join(jobErr, err)
	} else if resolved > 0 {
		run.AddProcessed(int(resolved))
		s.logger(ctx).Info("capacity alerts resolved", zap.Int64("count", resolved))
	}

	return jobErr
}

// ProvisioningJob drains the organization outbox so new organizations get
// their registration settings and receipt counters seeded.
func (s *Scheduler) ProvisioningJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "provisioning", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	var jobErr error

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		processed, err := s.provisioning.ProcessPending(ctx)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.provisioning.failed", "provisioning", 0, err)
			jobErr = errors.Join(jobErr, err)
		}
		run.AddProcessed(processed)
		if processed == 0 {
			break
		}
	}

	return jobErr
}

// SessionCleanupJob deletes sessions past the retention window in batches.
func (s *Scheduler) SessionCleanupJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "session_cleanup", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	cutoff := s.clock.Now().Add(-s.cfg.SessionRetention)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		deleted, err := s.deleteDeadSessions(ctx, cutoff, s.cfg.BatchSize)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.session_cleanup.failed", "session_cleanup", 0, err)
			return err
		}
		if deleted == 0 {
			break
		}
		run.AddProcessed(int(deleted))
		obsmetrics.Scheduler().AddBatchProcessed("session_cleanup", "sessions", int(deleted))
	}

	return nil
}

// DashboardRollupJob recomputes dashboard aggregates for events whose
// registrations changed inside the lookback window.
func (s *Scheduler) DashboardRollupJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "dashboard_rollup", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	since := s.clock.Now().Add(-s.cfg.RollupLookback)

	if err := s.rollupSvc.RecomputeSince(ctx, since, s.cfg.BatchSize); err != nil {
		s.logSchedulerError(ctx, run, "scheduler.dashboard_rollup.failed", "dashboard_rollup", 0, err)
		return err
	}

	return nil
}

func (s *Scheduler) withAuditContext(ctx context.Context, eventID, registrationID string) context.Context {
	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")
	if eventID != "" {
		ctx = auditcontext.WithEventID(ctx, eventID)
	}
	if registrationID != "" {
		ctx = auditcontext.WithRegistrationID(ctx, registrationID)
	}
	return ctx
}

func (s *Scheduler) emitAuditEvent(ctx context.Context, event auditEvent) {
	if s.auditSvc == nil {
		return
	}
	ctx = s.withAuditContext(ctx, event.EventID, event.RegistrationID)
	orgID := event.OrgID
	targetID := event.TargetID
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, event.Action, event.TargetType, &targetID, event.Metadata)
}

func (s *Scheduler) authorizeSystem(ctx context.Context, orgID snowflake.ID, object string, action string) error {
	if s.authzSvc == nil {
		return authorization.ErrForbidden
	}
	return s.authzSvc.Authorize(ctx, "system", orgID.String(), object, action)
}
