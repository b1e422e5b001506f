package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/email-gateway-api/internal/handler/dto"
	"github.com/makkenzo/email-gateway-api/internal/metrics"
	"github.com/makkenzo/email-gateway-api/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimitMiddleware admits or denies the request against the key's
// dual-horizon quota. Must run after BearerAuthMiddleware. The four
// X-RateLimit headers are set on every response, allowed or denied.
func RateLimitMiddleware(limiter *ratelimit.Limiter, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("RateLimitMiddleware")
	return func(c *gin.Context) {
		key := GetIdentity(c)
		if key == nil {
			c.Next()
			return
		}

		decision := limiter.Acquire(key.KeyID, key.RateLimitPerMinute, key.RateLimitPerHour)

		c.Header("X-RateLimit-Limit-Minute", strconv.Itoa(decision.LimitMinute))
		c.Header("X-RateLimit-Limit-Hour", strconv.Itoa(decision.LimitHour))
		c.Header("X-RateLimit-Remaining-Minute", strconv.Itoa(decision.RemainingMinute))
		c.Header("X-RateLimit-Remaining-Hour", strconv.Itoa(decision.RemainingHour))

		if decision.Allowed {
			c.Next()
			return
		}

		horizon := denialHorizon(decision)
		metrics.RateLimitDenialsTotal.WithLabelValues(horizon).Inc()
		log.Warn("Request denied by rate limiter",
			zap.String("key_id", key.KeyID),
			zap.String("horizon", horizon),
			zap.Int("remaining_minute", decision.RemainingMinute),
			zap.Int("remaining_hour", decision.RemainingHour),
		)

		c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.RateLimitExceededResponse{
			Code:            "RATE_LIMIT_EXCEEDED",
			Message:         "Rate limit exceeded. Please slow down.",
			RemainingMinute: decision.RemainingMinute,
			RemainingHour:   decision.RemainingHour,
		})
	}
}

func denialHorizon(d ratelimit.Decision) string {
	switch {
	case d.MinuteExceeded && d.HourExceeded:
		return "both"
	case d.HourExceeded:
		return "hour"
	default:
		return "minute"
	}
}
