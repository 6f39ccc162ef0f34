package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/eventra/internal/config"
)

const (
	keyPublicSubmitOrg      = "register:submit:org:%s"
	keyPublicPreviewEvent   = "register:preview:event:%s"
	keyPublicSubmissionLock = "register:submit:lock:%s:%s:%s"
)

// NewRedisClient builds the shared client for rate limiting and scheduler
// job leases. It returns nil when rate limiting is disabled, and everything
// downstream degrades to pass-through.
func NewRedisClient(cfg config.Config) *redis.Client {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil
	}
	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})
}

// PublicLimiter throttles the unauthenticated registration surface: submits
// per organization, pricing previews per event, and a short concurrency lock
// that keeps double-clicked submits from racing each other.
type PublicLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker
	policy *config.RegistrationPolicyHolder

	submitRate  float64
	submitBurst int
	lockTTL     time.Duration
}

func NewPublicLimiter(cfg config.Config, client *redis.Client, policy *config.RegistrationPolicyHolder) (*PublicLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return nil, nil
	}
	if limitCfg.PublicSubmitRate <= 0 || limitCfg.PublicSubmitBurst <= 0 {
		return nil, errors.New("public submit rate limit must be positive")
	}

	return &PublicLimiter{
		enabled:     true,
		bucket:      NewTokenBucket(client),
		locker:      NewLocker(client),
		policy:      policy,
		submitRate:  limitCfg.PublicSubmitRate,
		submitBurst: limitCfg.PublicSubmitBurst,
		lockTTL:     time.Duration(limitCfg.SubmitLockTTLSeconds) * time.Second,
	}, nil
}

func (l *PublicLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *PublicLimiter) AllowSubmit(ctx context.Context, orgID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPublicSubmitOrg, strings.TrimSpace(orgID)), l.submitRate, l.submitBurst)
}

// AllowPreview reads its limits from the hot-reloadable policy so ops can
// open or tighten preview traffic without a restart.
func (l *PublicLimiter) AllowPreview(ctx context.Context, eventID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	p := l.policy.Get()
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPublicPreviewEvent, strings.TrimSpace(eventID)), p.PreviewRate, p.PreviewBurst)
}

func (l *PublicLimiter) TryLockSubmission(ctx context.Context, orgID, eventID, email string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	key := fmt.Sprintf(
		keyPublicSubmissionLock,
		strings.TrimSpace(orgID),
		strings.TrimSpace(eventID),
		strings.ToLower(strings.TrimSpace(email)),
	)
	return l.locker.TryLock(ctx, key, l.lockTTL)
}

func (l *PublicLimiter) ReleaseSubmission(ctx context.Context, orgID, eventID, email, token string) error {
	if !l.Enabled() {
		return nil
	}
	key := fmt.Sprintf(
		keyPublicSubmissionLock,
		strings.TrimSpace(orgID),
		strings.TrimSpace(eventID),
		strings.ToLower(strings.TrimSpace(email)),
	)
	return l.locker.Release(ctx, key, token)
}
