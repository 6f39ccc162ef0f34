package server

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventra/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/eventra/internal/observability/metrics"
	"github.com/smallbiznis/eventra/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	rateLimitReasonOrgSubmit             = "org-submit-rate"
	rateLimitReasonEventPreview          = "event-preview-rate"
	rateLimitReasonSubmissionConcurrency = "submission-concurrency"
)

// allowPublicSubmit enforces the per-org submission budget. It writes the
// limiter headers on both outcomes so clients can pace themselves.
func (s *Server) allowPublicSubmit(c *gin.Context, orgID string) bool {
	if s.publicLimiter == nil || !s.publicLimiter.Enabled() {
		return true
	}

	ctx := c.Request.Context()
	endpoint := normalizeRateLimitEndpoint(c)

	result, err := s.publicLimiter.AllowSubmit(ctx, orgID)
	if err != nil {
		logger.FromContext(ctx).Warn("public submit rate limit check failed", zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return false
	}
	writeRateLimitHeaders(c, result)
	if !result.Allowed {
		denyPublicRateLimit(c, endpoint, orgID, rateLimitReasonOrgSubmit, result, s.obsMetrics)
		return false
	}

	recordRateLimitAllowed(ctx, endpoint, orgID, s.obsMetrics)
	return true
}

// allowPublicPreview enforces the per-event preview budget.
func (s *Server) allowPublicPreview(c *gin.Context, orgID, eventID string) bool {
	if s.publicLimiter == nil || !s.publicLimiter.Enabled() {
		return true
	}

	ctx := c.Request.Context()
	endpoint := normalizeRateLimitEndpoint(c)

	result, err := s.publicLimiter.AllowPreview(ctx, eventID)
	if err != nil {
		logger.FromContext(ctx).Warn("public preview rate limit check failed", zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return false
	}
	writeRateLimitHeaders(c, result)
	if !result.Allowed {
		denyPublicRateLimit(c, endpoint, orgID, rateLimitReasonEventPreview, result, s.obsMetrics)
		return false
	}

	recordRateLimitAllowed(ctx, endpoint, orgID, s.obsMetrics)
	return true
}

func denyPublicRateLimit(c *gin.Context, endpoint, orgID, reason string, result *ratelimit.RateLimitResult, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("public rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, orgID, reason, metrics)

	retryAfter := "1"
	if result != nil && result.RetryAfter > 0 {
		retryAfter = strconv.Itoa(int(result.RetryAfter.Round(time.Second) / time.Second))
	}
	c.Header("Retry-After", retryAfter)
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func writeRateLimitHeaders(c *gin.Context, result *ratelimit.RateLimitResult) {
	if result == nil {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	if !result.ResetTime.IsZero() {
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))
	}
}

func recordRateLimitAllowed(ctx context.Context, endpoint, orgID string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, orgID, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, orgID, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, orgID, endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
