// dao/token_dao.go
package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
)

// TokenDAO persists the authoritative state of issued consent tokens. The
// signed token itself is never stored, only its id and lifecycle flags.
type TokenDAO struct {
	Driver neo4j.Driver
}

func NewTokenDAO(driver neo4j.Driver) *TokenDAO {
	dao := &TokenDAO{Driver: driver}
	ctx := context.Background()
	if err := dao.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint", zap.Error(err))
	}
	return dao
}

// EnsureUniqueConstraint ensures the unique constraint on the TokenRecord ID
func (dao *TokenDAO) EnsureUniqueConstraint(ctx context.Context) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_token_record_id IF NOT EXISTS
        FOR (t:TOKEN_RECORD) REQUIRE t.id IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create unique constraint: %w", err)
		}
		return nil, nil
	})
	return err
}

// SaveToken persists the record of a freshly issued token
func (dao *TokenDAO) SaveToken(ctx context.Context, record model.TokenRecord) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE (t:TOKEN_RECORD {id: $id, subject_id: $subjectID, purpose: $purpose,
            categories: $categories, scopes: $scopes,
            issued_at: $issuedAt, expires_at: $expiresAt, revoked: false})
        RETURN t.id
        `

		categoriesJSON, _ := json.Marshal(record.Categories)
		scopesJSON, _ := json.Marshal(record.Scopes)

		_, err := transaction.Run(query, map[string]interface{}{
			"id":         record.ID,
			"subjectID":  record.SubjectID,
			"purpose":    record.Purpose,
			"categories": string(categoriesJSON),
			"scopes":     string(scopesJSON),
			"issuedAt":   record.IssuedAt.Format(time.RFC3339),
			"expiresAt":  record.ExpiresAt.Format(time.RFC3339),
		})
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to save token record",
			zap.Error(err),
			zap.String("tokenID", record.ID),
			zap.String("subjectID", record.SubjectID))
		return err
	}

	logger.Info("Token record saved", zap.String("tokenID", record.ID))
	return nil
}

// GetToken loads the persisted record for a token id
func (dao *TokenDAO) GetToken(ctx context.Context, tokenID string) (*model.TokenRecord, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (t:TOKEN_RECORD {id: $id})
        RETURN t
        `
		queryResult, err := transaction.Run(query, map[string]interface{}{"id": tokenID})
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}
		if queryResult.Next() {
			node, found := queryResult.Record().Get("t")
			if !found {
				return nil, veil_errors.ErrInternalServer
			}
			return tokenRecordFromProps(node.(neo4j.Node).Props)
		}
		return nil, veil_errors.ErrTokenNotFound
	})
	if err != nil {
		return nil, err
	}

	return result.(*model.TokenRecord), nil
}

// RevokeToken flips the persisted revoked flag. The flag is monotonic:
// revoking an already revoked token is a no-op, and nothing ever clears it.
func (dao *TokenDAO) RevokeToken(ctx context.Context, tokenID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (t:TOKEN_RECORD {id: $id})
        SET t.revoked = true,
            t.revoked_at = coalesce(t.revoked_at, $now)
        RETURN t.id
        `
		revokeResult, err := transaction.Run(query, map[string]interface{}{
			"id":  tokenID,
			"now": time.Now().Format(time.RFC3339),
		})
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}
		if !revokeResult.Next() {
			return nil, veil_errors.ErrTokenNotFound
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to revoke token", zap.Error(err), zap.String("tokenID", tokenID))
		return err
	}

	logger.Info("Token revoked", zap.String("tokenID", tokenID))
	return nil
}

func tokenRecordFromProps(props map[string]interface{}) (*model.TokenRecord, error) {
	record := &model.TokenRecord{
		ID:        stringProp(props, "id"),
		SubjectID: stringProp(props, "subject_id"),
		Purpose:   stringProp(props, "purpose"),
		Revoked:   boolProp(props, "revoked"),
	}

	if categoriesJSON := stringProp(props, "categories"); categoriesJSON != "" {
		if err := json.Unmarshal([]byte(categoriesJSON), &record.Categories); err != nil {
			return nil, fmt.Errorf("failed to unmarshal token categories: %w", err)
		}
	}
	if scopesJSON := stringProp(props, "scopes"); scopesJSON != "" {
		if err := json.Unmarshal([]byte(scopesJSON), &record.Scopes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal token scopes: %w", err)
		}
	}

	if issuedAt := parseNullableTime(stringProp(props, "issued_at")); issuedAt != nil {
		record.IssuedAt = *issuedAt
	}
	if expiresAt := parseNullableTime(stringProp(props, "expires_at")); expiresAt != nil {
		record.ExpiresAt = *expiresAt
	}
	record.RevokedAt = parseNullableTime(stringProp(props, "revoked_at"))

	return record, nil
}
