// dao/record_dao.go
package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
)

type RecordDAO struct {
	Driver neo4j.Driver
}

func NewRecordDAO(driver neo4j.Driver) *RecordDAO {
	return &RecordDAO{Driver: driver}
}

// InsertRecord stores one raw sample linked to its category
func (dao *RecordDAO) InsertRecord(ctx context.Context, record model.RawRecord) (string, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (cat:DATA_CATEGORY {key: $categoryKey})
        CREATE (r:RAW_RECORD {id: $id, subject_id: $subjectID, category_key: $categoryKey, payload: $payload, created_at: $createdAt})
        CREATE (r)-[:OF_CATEGORY]->(cat)
        RETURN r.id as id
        `

		payloadJSON, err := json.Marshal(record.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal record payload: %w", err)
		}

		createResult, err := transaction.Run(query, map[string]interface{}{
			"id":          record.ID,
			"subjectID":   record.SubjectID,
			"categoryKey": record.CategoryKey,
			"payload":     string(payloadJSON),
			"createdAt":   time.Now().Format(time.RFC3339),
		})
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}
		if createResult.Next() {
			id, found := createResult.Record().Get("id")
			if !found {
				return nil, veil_errors.ErrInternalServer
			}
			return id, nil
		}
		return nil, veil_errors.ErrCategoryNotFound
	})
	if err != nil {
		logger.Error("Failed to insert raw record",
			zap.Error(err),
			zap.String("subjectID", record.SubjectID),
			zap.String("categoryKey", record.CategoryKey))
		return "", err
	}

	return fmt.Sprintf("%v", result), nil
}

// GetRecords loads every raw sample for one subject and category
func (dao *RecordDAO) GetRecords(ctx context.Context, subjectID, categoryKey string) ([]*model.RawRecord, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (r:RAW_RECORD {subject_id: $subjectID, category_key: $categoryKey})
        RETURN r
        ORDER BY r.created_at
        `
		queryResult, err := transaction.Run(query, map[string]interface{}{
			"subjectID":   subjectID,
			"categoryKey": categoryKey,
		})
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}

		var records []*model.RawRecord
		for queryResult.Next() {
			node, found := queryResult.Record().Get("r")
			if !found {
				continue
			}
			record, err := recordFromProps(node.(neo4j.Node).Props)
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}
		return records, nil
	})
	if err != nil {
		logger.Error("Failed to fetch raw records",
			zap.Error(err),
			zap.String("subjectID", subjectID),
			zap.String("categoryKey", categoryKey))
		return nil, err
	}

	return result.([]*model.RawRecord), nil
}

func recordFromProps(props map[string]interface{}) (*model.RawRecord, error) {
	record := &model.RawRecord{
		ID:          stringProp(props, "id"),
		SubjectID:   stringProp(props, "subject_id"),
		CategoryKey: stringProp(props, "category_key"),
	}

	if payloadJSON := stringProp(props, "payload"); payloadJSON != "" {
		if err := json.Unmarshal([]byte(payloadJSON), &record.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record payload: %w", err)
		}
	}
	if createdAt := parseNullableTime(stringProp(props, "created_at")); createdAt != nil {
		record.CreatedAt = *createdAt
	}

	return record, nil
}
