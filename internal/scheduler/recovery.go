package scheduler

import (
	"context"
	"time"

	"github.com/smallbiznis/eventra/internal/scheduler/guard"
	"go.uber.org/zap"
)

// OutboxWatchdogJob makes a wedged outbox publisher loud. It changes no
// state; provisioning keeps retrying on its own.
func (s *Scheduler) OutboxWatchdogJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "outbox_watchdog", 1)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()

	oldestAge, err := s.oldestUnpublishedOutboxAge(ctx, now)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.outbox_watchdog.failed", "outbox_watchdog", 0, err)
		return err
	}
	if oldestAge == nil {
		return nil
	}

	if err := guard.EnsureOutboxFresh(*oldestAge, s.cfg.OutboxStallThreshold); err != nil {
		s.logSchedulerError(ctx, run, "outbox publisher stalled", "outbox_watchdog", 0, err,
			zap.Duration("oldest_age", *oldestAge),
			zap.Duration("stall_threshold", s.cfg.OutboxStallThreshold),
		)
	}

	return nil
}

func (s *Scheduler) oldestUnpublishedOutboxAge(ctx context.Context, now time.Time) (*time.Duration, error) {
	var row struct {
		CreatedAt time.Time `gorm:"column:created_at"`
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT created_at
		 FROM outbox_events
		 WHERE published = false
		 ORDER BY created_at ASC
		 LIMIT 1`,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.CreatedAt.IsZero() {
		return nil, nil
	}

	age := now.Sub(row.CreatedAt)
	return &age, nil
}
