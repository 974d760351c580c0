package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"matribhumi/api/logger"
	"matribhumi/api/utils"
)

// Limiter counts hits per key in a fixed window. *store.RateLimitStore implements it.
type Limiter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// OnLimited is called whenever a request is turned away.
type OnLimited func(c *gin.Context)

// RateLimit caps requests per client address to limit within window. The client address
// is fingerprinted before it becomes part of a key. Limiter errors let the request through.
func RateLimit(limiter Limiter, scope string, limit int, window time.Duration, log *logger.Logger, onLimited OnLimited) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		key := scope + ":" + utils.FingerprintAddress(c.ClientIP())
		count, ttl, err := limiter.Hit(c.Request.Context(), key, window)
		if err != nil {
			log.WithError(err).WithField("scope", scope).Warn("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining(limit, count), 10))

		if count > int64(limit) {
			if onLimited != nil {
				onLimited(c)
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

func remaining(limit int, count int64) int64 {
	if left := int64(limit) - count; left > 0 {
		return left
	}
	return 0
}
