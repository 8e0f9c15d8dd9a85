package server

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/givebox/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/givebox/internal/observability/metrics"
	"github.com/smallbiznis/givebox/internal/ratelimit"
	"go.uber.org/zap"
)

const rateLimitReasonWindow = "window-exceeded"

// RateLimit counts the request against class for the caller. Authenticated
// callers are keyed by user id, anonymous ones by client address.
func (s *Server) RateLimit(class string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		identifier := ratelimit.Identifier(c.GetString(contextUserIDKey), c.Request.Header)
		decision := s.limiter.Check(ctx, identifier, class)
		setRateLimitHeaders(c, decision)
		if !decision.Allowed {
			denyRateLimit(c, s.limiter, decision, endpoint, identifier, s.obsMetrics)
			return
		}

		recordRateLimitAllowed(ctx, class, endpoint, s.obsMetrics)
		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, decision ratelimit.Decision) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	if !decision.ResetAt.IsZero() {
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	}
}

func denyRateLimit(c *gin.Context, limiter *ratelimit.Limiter, decision ratelimit.Decision, endpoint, identifier string, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	retryAfter := decision.RetryAfter(limiter.Now())

	logger.SecurityEvent(logger.FromContext(ctx), "Rate limit exceeded", logger.SeverityMedium,
		zap.String("class", decision.Class),
		zap.String("identifier", identifier),
		zap.String("endpoint", endpoint),
		zap.Int("limit", decision.Limit),
	)
	recordRateLimitDenied(ctx, decision.Class, endpoint, rateLimitReasonWindow, metrics)

	c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitAllowed(ctx context.Context, class, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, class, endpoint)
}

func recordRateLimitDenied(ctx context.Context, class, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, class, endpoint, reason)
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
