// controller/query_controller.go
package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	veil_errors "github.com/veildata/veil/errors"
	"github.com/veildata/veil/model"
	"github.com/veildata/veil/service"
	"github.com/veildata/veil/util"
)

type QueryController struct {
	queryService service.IQueryService
}

func NewQueryController(queryService service.IQueryService) *QueryController {
	return &QueryController{
		queryService: queryService,
	}
}

// RegisterRoutes registers the API routes
func (qc *QueryController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/query", qc.ExecuteQuery)
}

// ExecuteQuery endpoint
func (qc *QueryController) ExecuteQuery(c *gin.Context) {
	caller, ok := util.GetCallerFromContext(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Missing caller identity", veil_errors.ErrUnauthenticated)
		return
	}

	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid query request", veil_errors.ErrInvalidParameter.WithReason("%v", err))
		return
	}

	bearerToken := bearerFromHeader(c.GetHeader("Authorization"))
	meta := service.RequestMeta{
		Endpoint:  c.FullPath(),
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	result, decision, err := qc.queryService.ExecuteQuery(c, caller, bearerToken, req, meta)
	util.SetRateLimitHeaders(c, decision)
	if err != nil {
		status, message := statusForQueryError(err)
		util.RespondWithError(c, status, message, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func bearerFromHeader(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// statusForQueryError maps the failure taxonomy onto HTTP statuses:
// API-key failures 401, token and consent denials 403, budget exhaustion
// 429, bad input 400, everything else 500.
func statusForQueryError(err error) (int, string) {
	switch {
	case errors.Is(err, veil_errors.ErrUnauthenticated):
		return http.StatusUnauthorized, "Unknown or missing API key"
	case errors.Is(err, veil_errors.ErrTokenMalformed),
		errors.Is(err, veil_errors.ErrVerificationFailed),
		errors.Is(err, veil_errors.ErrTokenExpired),
		errors.Is(err, veil_errors.ErrTokenInvalid),
		errors.Is(err, veil_errors.ErrTokenRevoked):
		return http.StatusForbidden, "Consent token rejected"
	case errors.Is(err, veil_errors.ErrMissingConsent),
		errors.Is(err, veil_errors.ErrConsentRevoked),
		errors.Is(err, veil_errors.ErrConsentRestricted),
		errors.Is(err, veil_errors.ErrConsentExpired),
		errors.Is(err, veil_errors.ErrInsufficientScopes):
		return http.StatusForbidden, "Consent does not permit this query"
	case errors.Is(err, veil_errors.ErrRateLimited):
		return http.StatusTooManyRequests, "Rate limit exceeded"
	case errors.Is(err, veil_errors.ErrUnknownCategory),
		errors.Is(err, veil_errors.ErrInvalidParameter),
		errors.Is(err, veil_errors.ErrInvalidParams),
		errors.Is(err, veil_errors.ErrEmptyInput):
		return http.StatusBadRequest, "Invalid query"
	default:
		return http.StatusInternalServerError, "Query failed"
	}
}
