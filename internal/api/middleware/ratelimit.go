package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"

	"github.com/qiongbi/card-ledger/internal/adapter"
	apierrors "github.com/qiongbi/card-ledger/internal/api/shared/errors"
	"github.com/qiongbi/card-ledger/internal/logger"
)

// RateLimit returns a gin middleware enforcing a per-client-IP request budget
// backed by Redis GCRA. When the limiter itself fails the request is allowed
// through: a Redis outage must not take the write path down with it.
func RateLimit(limiter adapter.RedisRateLimiter, perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:%s", c.ClientIP())

		res, err := limiter.Allow(c.Request.Context(), key, redis_rate.PerMinute(perMinute))
		if err != nil {
			logger.WarnCtx(c.Request.Context(), "rate limiter unavailable, allowing request",
				zap.String("client_ip", c.ClientIP()),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds() + 0.5)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			apiErr := apierrors.NewRateLimitedError(
				fmt.Sprintf("retry after %ds", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apiErr)
			return
		}

		c.Next()
	}
}
