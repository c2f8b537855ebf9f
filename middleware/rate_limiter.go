// middleware/rate_limiter.go

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/ratelimit"
	"github.com/veildata/veil/util"
)

// RateLimiter enforces the per-caller fixed-window limit for the named
// endpoint. The caller must already be resolved by APIKeyAuth.
func RateLimiter(limiter *ratelimit.Limiter, endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := util.GetCallerFromContext(c)
		if !ok {
			util.RespondWithError(c, http.StatusUnauthorized, "Missing caller identity", veil_errors.ErrUnauthenticated)
			c.Abort()
			return
		}

		decision := limiter.Check(c, caller.Key, endpoint)
		util.SetRateLimitHeaders(c, decision)

		if !decision.Allowed {
			logger.Warn("Rate limit exceeded",
				zap.String("callerKey", caller.Key),
				zap.String("endpoint", endpoint),
				zap.Int("limit", decision.Limit))
			util.RespondWithError(c, http.StatusTooManyRequests, "Rate limit exceeded", veil_errors.ErrRateLimited)
			c.Abort()
			return
		}

		c.Next()
	}
}
