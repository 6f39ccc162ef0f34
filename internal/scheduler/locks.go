package scheduler

import (
	"context"
	"time"

	obsmetrics "github.com/smallbiznis/eventra/internal/observability/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func jobLockKey(name string) string {
	return "scheduler:job:" + name
}

// acquireJobLock takes the distributed lease for a named job so only one
// instance sweeps at a time. Without a locker every instance runs every job,
// which is safe but wasteful.
func (s *Scheduler) acquireJobLock(ctx context.Context, name string) (release func(), acquired bool, err error) {
	if s.locker == nil {
		return nil, true, nil
	}

	key := jobLockKey(name)
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return nil, true, err
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		// The job context may already be past its deadline.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.log.Warn("failed to release job lock",
				zap.String("job", name),
				zap.Error(err),
			)
		}
	}
	return release, true, nil
}

// deleteDeadSessions removes one locked batch of sessions past the retention
// cutoff, expired or revoked. SKIP LOCKED keeps concurrent sweeps off each
// other's rows.
func (s *Scheduler) deleteDeadSessions(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := s.fetchDeadSessions(ctx, tx, cutoff, limit)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		res := tx.WithContext(ctx).Exec(`DELETE FROM sessions WHERE id IN ?`, ids)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *Scheduler) fetchDeadSessions(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]int64, error) {
	schedMetrics := obsmetrics.Scheduler()
	lockStart := time.Now()

	var ids []int64
	err := tx.WithContext(ctx).Raw(
		`SELECT id
		 FROM sessions
		 WHERE expires_at <= ? OR (revoked_at IS NOT NULL AND revoked_at <= ?)
		 ORDER BY id
		 LIMIT ?
		 FOR UPDATE SKIP LOCKED`,
		cutoff,
		cutoff,
		limit,
	).Scan(&ids).Error
	schedMetrics.ObserveDBLockWait(obsmetrics.LockResourceSessionsForCleanup, time.Since(lockStart))
	if err != nil {
		return nil, err
	}
	return ids, nil
}
