// controller/token_controller.go
package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	veil_errors "github.com/veildata/veil/errors"
	"github.com/veildata/veil/service"
	"github.com/veildata/veil/util"
)

type TokenController struct {
	tokenService service.ITokenService
}

func NewTokenController(tokenService service.ITokenService) *TokenController {
	return &TokenController{
		tokenService: tokenService,
	}
}

// RegisterRoutes registers the API routes
func (tc *TokenController) RegisterRoutes(r *gin.RouterGroup) {
	tokens := r.Group("/tokens")
	{
		tokens.POST("", tc.IssueToken)
		tokens.DELETE("/:id", tc.RevokeToken)
		tokens.POST("/introspect", tc.Introspect)
	}
}

type issueTokenRequest struct {
	SubjectID  string   `json:"subject_id" binding:"required"`
	Purpose    string   `json:"purpose" binding:"required"`
	Categories []string `json:"categories" binding:"required"`
	Scopes     []string `json:"scopes" binding:"required"`
	TTLSeconds int64    `json:"ttl_seconds"`
}

// IssueToken endpoint
func (tc *TokenController) IssueToken(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid token request", veil_errors.ErrInvalidParams.WithReason("%v", err))
		return
	}

	issued, err := tc.tokenService.IssueToken(c, req.SubjectID, req.Purpose, req.Categories, req.Scopes, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		switch {
		case errors.Is(err, veil_errors.ErrInvalidParams):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid token request", err)
		case errors.Is(err, veil_errors.ErrMissingConsent),
			errors.Is(err, veil_errors.ErrConsentRevoked),
			errors.Is(err, veil_errors.ErrConsentRestricted),
			errors.Is(err, veil_errors.ErrConsentExpired),
			errors.Is(err, veil_errors.ErrInsufficientScopes):
			util.RespondWithError(c, http.StatusForbidden, "Consent does not permit issuing this token", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to issue token", veil_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusCreated, issued)
}

// RevokeToken endpoint
func (tc *TokenController) RevokeToken(c *gin.Context) {
	tokenID := c.Param("id")
	if err := tc.tokenService.RevokeToken(c, tokenID); err != nil {
		if errors.Is(err, veil_errors.ErrTokenNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Token not found", err)
			return
		}
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to revoke token", veil_errors.ErrInternalServer)
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": true, "token_id": tokenID})
}

type introspectRequest struct {
	Token string `json:"token" binding:"required"`
}

// Introspect endpoint
func (tc *TokenController) Introspect(c *gin.Context) {
	var req introspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid introspection request", veil_errors.ErrInvalidParams.WithReason("%v", err))
		return
	}

	result, err := tc.tokenService.Introspect(c, req.Token)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to introspect token", veil_errors.ErrInternalServer)
		return
	}

	c.JSON(http.StatusOK, result)
}
