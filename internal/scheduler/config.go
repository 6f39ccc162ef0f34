package scheduler

import (
	"errors"
	"time"

	"github.com/smallbiznis/eventra/internal/config"
)

var ErrInvalidConfig = errors.New("scheduler: missing required dependency")

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval          time.Duration
	BatchSize            int
	LockTTL              time.Duration
	CapacityThresholdPct float64
	RollupLookback       time.Duration
	SessionRetention     time.Duration
	OutboxStallThreshold time.Duration
	EnabledJobs          []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:          time.Minute,
		BatchSize:            100,
		LockTTL:              2 * time.Minute,
		CapacityThresholdPct: 80,
		RollupLookback:       15 * time.Minute,
		SessionRetention:     7 * 24 * time.Hour,
		OutboxStallThreshold: 15 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.CapacityThresholdPct <= 0 || c.CapacityThresholdPct > 100 {
		c.CapacityThresholdPct = defaults.CapacityThresholdPct
	}
	if c.RollupLookback <= 0 {
		c.RollupLookback = defaults.RollupLookback
	}
	if c.SessionRetention <= 0 {
		c.SessionRetention = defaults.SessionRetention
	}
	if c.OutboxStallThreshold <= 0 {
		c.OutboxStallThreshold = defaults.OutboxStallThreshold
	}
	return c
}

// ProvideConfig maps the application scheduler settings onto the package
// config so fx can inject it.
func ProvideConfig(cfg config.Config) Config {
	sched := cfg.Scheduler
	return Config{
		RunInterval:          time.Duration(sched.RunIntervalSeconds) * time.Second,
		BatchSize:            sched.BatchSize,
		LockTTL:              time.Duration(sched.LockTTLSeconds) * time.Second,
		CapacityThresholdPct: sched.CapacityAlertThresholdPct,
		RollupLookback:       time.Duration(sched.RollupLookbackMinutes) * time.Minute,
		SessionRetention:     time.Duration(sched.SessionRetentionDays) * 24 * time.Hour,
		OutboxStallThreshold: time.Duration(sched.OutboxStallThresholdMinutes) * time.Minute,
		EnabledJobs:          sched.EnabledJobs,
	}.withDefaults()
}
