// util/http_util.go
package util

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
)

// RespondWithError writes the standard failure body {error, code, reason?}.
// Plain errors fall back to the INTERNAL_ERROR code so the machine-readable
// contract holds for every denial.
func RespondWithError(c *gin.Context, status int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method))

	if typed, ok := err.(*veil_errors.Error); ok {
		c.JSON(status, gin.H{"error": message, "code": typed.Code, "reason": typed.Reason})
		return
	}
	c.JSON(status, gin.H{"error": message, "code": veil_errors.ErrInternalServer.Code})
}

// GetCallerFromContext returns the caller resolved by the API key middleware.
func GetCallerFromContext(c *gin.Context) (*model.Caller, bool) {
	value, exists := c.Get("caller")
	if !exists {
		return nil, false
	}
	caller, ok := value.(*model.Caller)
	return caller, ok
}

// SetRateLimitHeaders writes the standard rate limit response headers.
// Reset is reported in epoch seconds.
func SetRateLimitHeaders(c *gin.Context, decision model.RateLimitDecision) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetTime/1000, 10))
	if !decision.Allowed && decision.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(decision.RetryAfter))
	}
}
