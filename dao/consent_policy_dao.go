// dao/consent_policy_dao.go
package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/veildata/veil/audit"
	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
)

type ConsentPolicyDAO struct {
	Driver       neo4j.Driver
	AuditService audit.Service
}

func NewConsentPolicyDAO(driver neo4j.Driver, auditService audit.Service) *ConsentPolicyDAO {
	dao := &ConsentPolicyDAO{Driver: driver, AuditService: auditService}
	ctx := context.Background()
	if err := dao.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint", zap.Error(err))
	}
	return dao
}

// EnsureUniqueConstraint ensures the unique constraint on the ConsentPolicy ID
func (dao *ConsentPolicyDAO) EnsureUniqueConstraint(ctx context.Context) error {
	logger.Info("Ensuring unique constraint on ConsentPolicy ID")
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("Failed to close Neo4j session", zap.Error(err))
		}
	}()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_consent_policy_id IF NOT EXISTS
        FOR (c:CONSENT_POLICY) REQUIRE c.id IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		if err != nil {
			logger.Error("Failed to create unique constraint", zap.Error(err))
			return nil, fmt.Errorf("failed to create unique constraint: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to ensure unique constraint on ConsentPolicy ID", zap.Error(err))
		return err
	}

	return nil
}

// UpsertPolicy creates or replaces the consent policy for one
// (subject, category, purpose) tuple. The tuple is the natural key; a
// subject changing their mind overwrites the previous decision in place.
func (dao *ConsentPolicyDAO) UpsertPolicy(ctx context.Context, policy model.ConsentPolicy, actorID string) (string, error) {
	start := time.Now()
	logger.Info("Upserting consent policy",
		zap.String("subjectID", policy.SubjectID),
		zap.String("categoryKey", policy.CategoryKey),
		zap.String("purpose", policy.Purpose))
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (cat:DATA_CATEGORY {key: $categoryKey})
        MERGE (c:CONSENT_POLICY {subject_id: $subjectID, category_key: $categoryKey, purpose: $purpose})
        ON CREATE SET c.id = $id, c.created_at = $now
        SET c += $props
        MERGE (c)-[:COVERS]->(cat)
        RETURN c.id as id
        `

		scopesJSON, _ := json.Marshal(policy.Scopes)

		parameters := map[string]interface{}{
			"id":          policy.ID,
			"subjectID":   policy.SubjectID,
			"categoryKey": policy.CategoryKey,
			"purpose":     policy.Purpose,
			"now":         time.Now().Format(time.RFC3339),
			"props": map[string]interface{}{
				"status":     policy.Status,
				"scopes":     string(scopesJSON),
				"expires_at": formatNullableTime(policy.ExpiresAt),
				"updated_at": time.Now().Format(time.RFC3339),
			},
		}
		upsertResult, err := transaction.Run(query, parameters)
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}
		if upsertResult.Next() {
			id, found := upsertResult.Record().Get("id")
			if !found {
				return nil, veil_errors.ErrInternalServer
			}
			return id, nil
		}
		// MATCH on the category found nothing, so the policy references an
		// unknown catalog entry.
		return nil, veil_errors.ErrCategoryNotFound
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to upsert consent policy",
			zap.Error(err),
			zap.String("subjectID", policy.SubjectID),
			zap.Duration("duration", duration))
		return "", err
	}

	policyID := fmt.Sprintf("%v", result)
	logger.Info("Consent policy upserted successfully",
		zap.String("policyID", policyID),
		zap.Duration("duration", duration))

	if dao.AuditService != nil {
		dao.AuditService.LogAccess(ctx, audit.AccessLog{
			Timestamp: time.Now(),
			Subject:   policy.SubjectID,
			Caller:    actorID,
			Category:  policy.CategoryKey,
			Purpose:   policy.Purpose,
			Action:    "consent.upserted",
		})
	}

	return policyID, nil
}

// FetchPolicies loads the live policy rows matching the given subject,
// categories and purpose. Implements consent.PolicyStore.
func (dao *ConsentPolicyDAO) FetchPolicies(ctx context.Context, subjectID string, categories []string, purpose string) ([]*model.ConsentPolicy, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (c:CONSENT_POLICY)
        WHERE c.subject_id = $subjectID AND c.category_key IN $categories AND c.purpose = $purpose
        RETURN c
        `
		queryResult, err := transaction.Run(query, map[string]interface{}{
			"subjectID":  subjectID,
			"categories": categories,
			"purpose":    purpose,
		})
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}

		var policies []*model.ConsentPolicy
		for queryResult.Next() {
			node, found := queryResult.Record().Get("c")
			if !found {
				continue
			}
			policy, err := policyFromProps(node.(neo4j.Node).Props)
			if err != nil {
				return nil, err
			}
			policies = append(policies, policy)
		}
		return policies, nil
	})
	if err != nil {
		logger.Error("Failed to fetch consent policies",
			zap.Error(err),
			zap.String("subjectID", subjectID),
			zap.String("purpose", purpose))
		return nil, err
	}

	return result.([]*model.ConsentPolicy), nil
}

// GetPolicy retrieves a consent policy by its ID
func (dao *ConsentPolicyDAO) GetPolicy(ctx context.Context, policyID string) (*model.ConsentPolicy, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (c:CONSENT_POLICY {id: $id})
        RETURN c
        `
		queryResult, err := transaction.Run(query, map[string]interface{}{"id": policyID})
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}
		if queryResult.Next() {
			node, found := queryResult.Record().Get("c")
			if !found {
				return nil, veil_errors.ErrInternalServer
			}
			return policyFromProps(node.(neo4j.Node).Props)
		}
		return nil, veil_errors.ErrPolicyNotFound
	})
	if err != nil {
		return nil, err
	}

	return result.(*model.ConsentPolicy), nil
}

// SearchPolicies lists consent policies matching the criteria, most recent
// first.
func (dao *ConsentPolicyDAO) SearchPolicies(ctx context.Context, criteria model.PolicySearchCriteria) ([]*model.ConsentPolicy, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	limit := criteria.Limit
	if limit <= 0 {
		limit = 50
	}

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (c:CONSENT_POLICY)
        WHERE ($subjectID = '' OR c.subject_id = $subjectID)
          AND ($categoryKey = '' OR c.category_key = $categoryKey)
          AND ($purpose = '' OR c.purpose = $purpose)
          AND ($status = '' OR c.status = $status)
        RETURN c
        ORDER BY c.updated_at DESC
        LIMIT $limit
        `
		queryResult, err := transaction.Run(query, map[string]interface{}{
			"subjectID":   criteria.SubjectID,
			"categoryKey": criteria.CategoryKey,
			"purpose":     criteria.Purpose,
			"status":      criteria.Status,
			"limit":       limit,
		})
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}

		var policies []*model.ConsentPolicy
		for queryResult.Next() {
			node, found := queryResult.Record().Get("c")
			if !found {
				continue
			}
			policy, err := policyFromProps(node.(neo4j.Node).Props)
			if err != nil {
				return nil, err
			}
			policies = append(policies, policy)
		}
		return policies, nil
	})
	if err != nil {
		logger.Error("Failed to search consent policies", zap.Error(err))
		return nil, err
	}

	return result.([]*model.ConsentPolicy), nil
}

// DeletePolicy removes a consent policy node
func (dao *ConsentPolicyDAO) DeletePolicy(ctx context.Context, policyID string, actorID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (c:CONSENT_POLICY {id: $id})
        WITH c, c.subject_id as subjectID
        DETACH DELETE c
        RETURN subjectID
        `
		deleteResult, err := transaction.Run(query, map[string]interface{}{"id": policyID})
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}
		if !deleteResult.Next() {
			return nil, veil_errors.ErrPolicyNotFound
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to delete consent policy",
			zap.Error(err),
			zap.String("policyID", policyID),
			zap.String("actorID", actorID))
		return err
	}

	logger.Info("Consent policy deleted successfully",
		zap.String("policyID", policyID),
		zap.String("actorID", actorID))
	return nil
}

func policyFromProps(props map[string]interface{}) (*model.ConsentPolicy, error) {
	policy := &model.ConsentPolicy{
		ID:          stringProp(props, "id"),
		SubjectID:   stringProp(props, "subject_id"),
		CategoryKey: stringProp(props, "category_key"),
		Purpose:     stringProp(props, "purpose"),
		Status:      stringProp(props, "status"),
	}

	if scopesJSON := stringProp(props, "scopes"); scopesJSON != "" {
		if err := json.Unmarshal([]byte(scopesJSON), &policy.Scopes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal policy scopes: %w", err)
		}
	}

	policy.ExpiresAt = parseNullableTime(stringProp(props, "expires_at"))
	if createdAt := parseNullableTime(stringProp(props, "created_at")); createdAt != nil {
		policy.CreatedAt = *createdAt
	}
	if updatedAt := parseNullableTime(stringProp(props, "updated_at")); updatedAt != nil {
		policy.UpdatedAt = *updatedAt
	}

	return policy, nil
}
