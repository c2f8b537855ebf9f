// controller/consent_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	veil_errors "github.com/veildata/veil/errors"
	"github.com/veildata/veil/model"
	"github.com/veildata/veil/service"
	"github.com/veildata/veil/util"
	helper_util "github.com/veildata/veil/util/helper"
)

type ConsentController struct {
	consentService service.IConsentService
}

func NewConsentController(consentService service.IConsentService) *ConsentController {
	return &ConsentController{
		consentService: consentService,
	}
}

// RegisterRoutes registers the API routes
func (cc *ConsentController) RegisterRoutes(r *gin.RouterGroup) {
	consents := r.Group("/consents")
	{
		consents.PUT("", cc.UpsertPolicy)
		consents.PUT("/bulk", cc.BulkUpsertPolicies)
		consents.GET("/:id", cc.GetPolicy)
		consents.DELETE("/:id", cc.DeletePolicy)
		consents.POST("/search", cc.SearchPolicies)
	}
}

// UpsertPolicy endpoint
func (cc *ConsentController) UpsertPolicy(c *gin.Context) {
	var policy model.ConsentPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid consent policy data", veil_errors.ErrInvalidPolicyData)
		return
	}

	caller, _ := util.GetCallerFromContext(c)
	actorID := ""
	if caller != nil {
		actorID = caller.Key
	}

	upserted, err := cc.consentService.UpsertPolicy(c, policy, actorID)
	if err != nil {
		switch {
		case errors.Is(err, veil_errors.ErrInvalidParams):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid consent policy data", err)
		case errors.Is(err, veil_errors.ErrCategoryNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Data category not found", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to upsert consent policy", veil_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusOK, upserted)
}

// BulkUpsertPolicies endpoint
func (cc *ConsentController) BulkUpsertPolicies(c *gin.Context) {
	var policies []model.ConsentPolicy
	if err := c.ShouldBindJSON(&policies); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid consent policy data", veil_errors.ErrInvalidPolicyData)
		return
	}

	caller, _ := util.GetCallerFromContext(c)
	actorID := ""
	if caller != nil {
		actorID = caller.Key
	}

	policyIDs, err := cc.consentService.BulkUpsertPolicies(c, policies, actorID)
	if err != nil {
		if errors.Is(err, veil_errors.ErrInvalidParams) {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid consent policy data", err)
			return
		}
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to upsert consent policies", veil_errors.ErrInternalServer)
		return
	}

	c.JSON(http.StatusOK, gin.H{"policy_ids": policyIDs})
}

// GetPolicy endpoint
func (cc *ConsentController) GetPolicy(c *gin.Context) {
	policyID := c.Param("id")
	policy, err := cc.consentService.GetPolicy(c, policyID)
	if err != nil {
		if errors.Is(err, veil_errors.ErrPolicyNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Consent policy not found", err)
			return
		}
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve consent policy", veil_errors.ErrInternalServer)
		return
	}

	c.JSON(http.StatusOK, policy)
}

// DeletePolicy endpoint
func (cc *ConsentController) DeletePolicy(c *gin.Context) {
	policyID := c.Param("id")

	caller, _ := util.GetCallerFromContext(c)
	actorID := ""
	if caller != nil {
		actorID = caller.Key
	}

	if err := cc.consentService.DeletePolicy(c, policyID, actorID); err != nil {
		if errors.Is(err, veil_errors.ErrPolicyNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Consent policy not found", err)
			return
		}
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to delete consent policy", veil_errors.ErrInternalServer)
		return
	}

	c.Status(http.StatusNoContent)
}

// SearchPolicies endpoint
func (cc *ConsentController) SearchPolicies(c *gin.Context) {
	var criteria model.PolicySearchCriteria
	if err := c.ShouldBindJSON(&criteria); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid search criteria", veil_errors.ErrInvalidPolicyData)
		return
	}
	if criteria.Limit <= 0 {
		limit, _, err := helper_util.GetPaginationParams(c)
		if err == nil {
			criteria.Limit = limit
		}
	}

	policies, err := cc.consentService.SearchPolicies(c, criteria)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to search consent policies", veil_errors.ErrInternalServer)
		return
	}

	c.JSON(http.StatusOK, policies)
}
