// controller/audit_controller.go
package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veildata/veil/audit"
	veil_errors "github.com/veildata/veil/errors"
	"github.com/veildata/veil/util"
)

type AuditController struct {
	auditService audit.Service
}

func NewAuditController(auditService audit.Service) *AuditController {
	return &AuditController{
		auditService: auditService,
	}
}

// RegisterRoutes registers the API routes
func (ac *AuditController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/access-logs", ac.QueryAccessLogs)
}

// QueryAccessLogs endpoint. Time range defaults to the last 24 hours.
func (ac *AuditController) QueryAccessLogs(c *gin.Context) {
	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)
	to := now

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid 'from' timestamp", veil_errors.ErrInvalidParams.WithReason("%v", err))
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid 'to' timestamp", veil_errors.ErrInvalidParams.WithReason("%v", err))
			return
		}
		to = parsed
	}

	logs, err := ac.auditService.QueryLogs(c, from, to, c.Query("subject"), c.Query("category"))
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query access logs", veil_errors.ErrInternalServer)
		return
	}

	c.JSON(http.StatusOK, logs)
}
