// service/record_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veildata/veil/dao"
	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
	"github.com/veildata/veil/util"
)

// IRecordService defines the interface for raw record ingestion
type IRecordService interface {
	IngestRecord(ctx context.Context, record model.RawRecord) (*model.RawRecord, error)
}

// RecordService handles ingestion of raw subject records. Records are only
// ever read back in aggregate through the query pipeline.
type RecordService struct {
	recordDAO      *dao.RecordDAO
	validationUtil *util.ValidationUtil
}

var _ IRecordService = &RecordService{}

// NewRecordService creates a new instance of RecordService
func NewRecordService(recordDAO *dao.RecordDAO, validationUtil *util.ValidationUtil) *RecordService {
	return &RecordService{
		recordDAO:      recordDAO,
		validationUtil: validationUtil,
	}
}

// IngestRecord stores one raw record under its subject and category
func (s *RecordService) IngestRecord(ctx context.Context, record model.RawRecord) (*model.RawRecord, error) {
	if err := s.validationUtil.ValidateRawRecord(record); err != nil {
		return nil, veil_errors.ErrInvalidParams.WithReason("%v", err)
	}

	record.CreatedAt = time.Now().UTC()
	recordID, err := s.recordDAO.InsertRecord(ctx, record)
	if err != nil {
		if errors.Is(err, veil_errors.ErrCategoryNotFound) {
			return nil, veil_errors.ErrCategoryNotFound
		}
		logger.Error("Error ingesting record",
			zap.Error(err),
			zap.String("subjectID", record.SubjectID),
			zap.String("category", record.CategoryKey))
		return nil, fmt.Errorf("failed to ingest record: %w", err)
	}
	record.ID = recordID

	logger.Info("Raw record ingested",
		zap.String("recordID", recordID),
		zap.String("subjectID", record.SubjectID),
		zap.String("category", record.CategoryKey))
	return &record, nil
}
