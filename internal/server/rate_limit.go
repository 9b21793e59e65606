package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/settlement/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	rateLimitAllowed = "allowed"
	rateLimitDenied  = "denied"
)

// WriteRateLimit throttles payout-creating calls per actor. Limiter failures
// fail closed.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		route := normalizeRateLimitRoute(c)
		res, err := s.limiter.AllowActor(ctx, actorFromContext(c))
		if err != nil {
			logger.FromContext(ctx).Warn("admin write rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			logger.FromContext(ctx).Warn("admin write rate limit exceeded", zap.String("route", route))
			s.metrics.IncRateLimit(route, rateLimitDenied)

			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}

		s.metrics.IncRateLimit(route, rateLimitAllowed)
		c.Next()
	}
}

func normalizeRateLimitRoute(c *gin.Context) string {
	route := strings.TrimSpace(c.FullPath())
	if route == "" {
		route = "unknown"
	}
	return route
}
