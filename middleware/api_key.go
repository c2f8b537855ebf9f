// middleware/api_key.go

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/veildata/veil/dao"
	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/util"
)

// APIKeyAuth resolves the X-API-Key header to a registered caller and
// stores it on the request context. Unknown or inactive callers are
// rejected before any other processing happens.
func APIKeyAuth(callerDAO *dao.CallerDAO) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			util.RespondWithError(c, http.StatusUnauthorized, "Missing API key", veil_errors.ErrUnauthenticated)
			c.Abort()
			return
		}

		caller, err := callerDAO.GetCallerByKey(c, apiKey)
		if err != nil {
			logger.Warn("Failed to resolve API key", zap.Error(err), zap.String("ip", c.ClientIP()))
			util.RespondWithError(c, http.StatusUnauthorized, "Unknown API key", veil_errors.ErrUnauthenticated)
			c.Abort()
			return
		}
		if !caller.Active {
			logger.Warn("Inactive caller attempted access",
				zap.String("callerKey", caller.Key),
				zap.String("ip", c.ClientIP()))
			util.RespondWithError(c, http.StatusUnauthorized, "Caller is deactivated", veil_errors.ErrUnauthenticated)
			c.Abort()
			return
		}

		c.Set("caller", caller)
		c.Next()
	}
}
