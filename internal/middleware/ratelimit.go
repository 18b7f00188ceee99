package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/adboard/billing-engine/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
)

// IPRateLimit creates a Gin middleware that applies a coarse per-IP limit
// using the provided ulule limiter instance. It fronts the webhook endpoint,
// where there is no authenticated identity to key on.
func IPRateLimit(limiterInstance *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		lctx, err := limiterInstance.Get(c.Request.Context(), ip)
		if err != nil {
			GetLoggerFromCtx(c.Request.Context()).Error("Failed to get rate limit context", slog.String("ip", ip), slog.String("error", err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error during rate limit check"})
			return
		}

		if lctx.Reached {
			GetLoggerFromCtx(c.Request.Context()).Warn("Rate limit exceeded", slog.String("ip", ip), slog.Int64("limit", lctx.Limit), slog.Int64("remaining_requests", lctx.Remaining))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please try again later."})
			return
		}

		c.Next()
	}
}

// EndpointRateLimit gates an endpoint on the sliding-window limiter across
// both identity axes: client address and, when authenticated, account id. The
// reported remaining/reset headers reflect the more restrictive axis.
func EndpointRateLimit(l *ratelimit.SlidingWindowLimiter, endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, _ := GetAccountIDFromContext(c)
		res := l.AllowBoth(endpoint, c.ClientIP(), accountID)

		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.ResetAt.IsZero() {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		}

		if !res.Allowed {
			GetLoggerFromCtx(c.Request.Context()).Warn("Rate limit exceeded",
				slog.String("endpoint", endpoint),
				slog.String("ip", c.ClientIP()),
				slog.Time("reset_at", res.ResetAt),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please try again later."})
			return
		}

		c.Next()
	}
}
