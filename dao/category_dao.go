// dao/category_dao.go
package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
)

type CategoryDAO struct {
	Driver neo4j.Driver
}

func NewCategoryDAO(driver neo4j.Driver) *CategoryDAO {
	dao := &CategoryDAO{Driver: driver}
	ctx := context.Background()
	if err := dao.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint", zap.Error(err))
	}
	return dao
}

// EnsureUniqueConstraint ensures the unique constraint on the DataCategory key
func (dao *CategoryDAO) EnsureUniqueConstraint(ctx context.Context) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_category_key IF NOT EXISTS
        FOR (cat:DATA_CATEGORY) REQUIRE cat.key IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create unique constraint: %w", err)
		}
		return nil, nil
	})
	return err
}

// CreateCategory adds an immutable catalog entry
func (dao *CategoryDAO) CreateCategory(ctx context.Context, category model.DataCategory) (string, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		checkQuery := `
        MATCH (cat:DATA_CATEGORY {key: $key})
        RETURN cat.key
        `
		checkResult, err := transaction.Run(checkQuery, map[string]interface{}{"key": category.Key})
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}
		if checkResult.Next() {
			return nil, veil_errors.ErrCategoryConflict
		}

		createQuery := `
        CREATE (cat:DATA_CATEGORY {key: $key, display_name: $displayName, created_at: $createdAt})
        RETURN cat.key as key
        `
		createResult, err := transaction.Run(createQuery, map[string]interface{}{
			"key":         category.Key,
			"displayName": category.DisplayName,
			"createdAt":   time.Now().Format(time.RFC3339),
		})
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}
		if createResult.Next() {
			key, found := createResult.Record().Get("key")
			if !found {
				return nil, veil_errors.ErrInternalServer
			}
			return key, nil
		}
		return nil, veil_errors.ErrInternalServer
	})
	if err != nil {
		logger.Error("Failed to create category", zap.Error(err), zap.String("key", category.Key))
		return "", err
	}

	logger.Info("Category created successfully", zap.String("key", category.Key))
	return fmt.Sprintf("%v", result), nil
}

// GetCategory retrieves a catalog entry by key
func (dao *CategoryDAO) GetCategory(ctx context.Context, key string) (*model.DataCategory, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (cat:DATA_CATEGORY {key: $key})
        RETURN cat
        `
		queryResult, err := transaction.Run(query, map[string]interface{}{"key": key})
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}
		if queryResult.Next() {
			node, found := queryResult.Record().Get("cat")
			if !found {
				return nil, veil_errors.ErrInternalServer
			}
			return categoryFromProps(node.(neo4j.Node).Props), nil
		}
		return nil, veil_errors.ErrCategoryNotFound
	})
	if err != nil {
		return nil, err
	}

	return result.(*model.DataCategory), nil
}

// ListCategories returns all catalog entries
func (dao *CategoryDAO) ListCategories(ctx context.Context) ([]*model.DataCategory, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (cat:DATA_CATEGORY)
        RETURN cat
        ORDER BY cat.key
        `
		queryResult, err := transaction.Run(query, nil)
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}

		var categories []*model.DataCategory
		for queryResult.Next() {
			node, found := queryResult.Record().Get("cat")
			if !found {
				continue
			}
			categories = append(categories, categoryFromProps(node.(neo4j.Node).Props))
		}
		return categories, nil
	})
	if err != nil {
		logger.Error("Failed to list categories", zap.Error(err))
		return nil, err
	}

	return result.([]*model.DataCategory), nil
}

func categoryFromProps(props map[string]interface{}) *model.DataCategory {
	category := &model.DataCategory{
		Key:         stringProp(props, "key"),
		DisplayName: stringProp(props, "display_name"),
	}
	if createdAt := parseNullableTime(stringProp(props, "created_at")); createdAt != nil {
		category.CreatedAt = *createdAt
	}
	return category
}
