// controller/record_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	veil_errors "github.com/veildata/veil/errors"
	"github.com/veildata/veil/model"
	"github.com/veildata/veil/service"
	"github.com/veildata/veil/util"
)

type RecordController struct {
	recordService service.IRecordService
}

func NewRecordController(recordService service.IRecordService) *RecordController {
	return &RecordController{
		recordService: recordService,
	}
}

// RegisterRoutes registers the API routes
func (rc *RecordController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/records", rc.IngestRecord)
}

// IngestRecord endpoint
func (rc *RecordController) IngestRecord(c *gin.Context) {
	var record model.RawRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid record data", veil_errors.ErrInvalidParams.WithReason("%v", err))
		return
	}

	ingested, err := rc.recordService.IngestRecord(c, record)
	if err != nil {
		switch {
		case errors.Is(err, veil_errors.ErrInvalidParams):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid record data", err)
		case errors.Is(err, veil_errors.ErrCategoryNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Data category not found", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to ingest record", veil_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusCreated, ingested)
}
