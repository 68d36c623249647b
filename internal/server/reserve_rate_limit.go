package server

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/spotlight/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/spotlight/internal/observability/metrics"
	"go.uber.org/zap"
)

const rateLimitReasonAccountRate = "account-rate"

// ReserveRateLimit throttles paid reserve attempts per seller account.
func (s *Server) ReserveRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.reserveLimiter.Enabled() {
			c.Next()
			return
		}

		actor, ok := principalFromContext(c)
		if !ok || actor.AccountID == 0 {
			AbortWithError(c, ErrAccountRequired)
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		ctx := c.Request.Context()

		result, err := s.reserveLimiter.AllowAccount(ctx, actor.AccountID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("reserve rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if !result.Allowed {
			denyReserveRateLimit(c, endpoint, result.RetryAfter, s.obsMetrics)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func denyReserveRateLimit(c *gin.Context, endpoint string, retryAfter time.Duration, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("reserve rate limit exceeded",
		zap.String("reason", rateLimitReasonAccountRate),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, rateLimitReasonAccountRate, metrics)

	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
	c.Header("X-Rate-Limited-Reason", rateLimitReasonAccountRate)
	AbortWithError(c, ErrRateLimited)
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
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
