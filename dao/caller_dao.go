// dao/caller_dao.go
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

// CallerDAO is the registry of API clients keyed by their opaque key.
type CallerDAO struct {
	Driver neo4j.Driver
}

func NewCallerDAO(driver neo4j.Driver) *CallerDAO {
	dao := &CallerDAO{Driver: driver}
	ctx := context.Background()
	if err := dao.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint", zap.Error(err))
	}
	return dao
}

// EnsureUniqueConstraint ensures the unique constraint on the Caller key
func (dao *CallerDAO) EnsureUniqueConstraint(ctx context.Context) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_caller_key IF NOT EXISTS
        FOR (a:CALLER) REQUIRE a.key IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create unique constraint: %w", err)
		}
		return nil, nil
	})
	return err
}

// CreateCaller registers a new API client
func (dao *CallerDAO) CreateCaller(ctx context.Context, caller model.Caller) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MERGE (a:CALLER {key: $key})
        SET a.name = $name, a.active = $active, a.created_at = $createdAt
        RETURN a.key
        `
		_, err := transaction.Run(query, map[string]interface{}{
			"key":       caller.Key,
			"name":      caller.Name,
			"active":    caller.Active,
			"createdAt": time.Now().Format(time.RFC3339),
		})
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to create caller", zap.Error(err), zap.String("name", caller.Name))
		return err
	}

	logger.Info("Caller registered successfully", zap.String("name", caller.Name))
	return nil
}

// GetCallerByKey resolves an API key to its registered caller
func (dao *CallerDAO) GetCallerByKey(ctx context.Context, key string) (*model.Caller, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (a:CALLER {key: $key})
        RETURN a
        `
		queryResult, err := transaction.Run(query, map[string]interface{}{"key": key})
		if err != nil {
			return nil, veil_errors.ErrDatabaseOperation
		}
		if queryResult.Next() {
			node, found := queryResult.Record().Get("a")
			if !found {
				return nil, veil_errors.ErrInternalServer
			}
			props := node.(neo4j.Node).Props
			caller := &model.Caller{
				Key:    stringProp(props, "key"),
				Name:   stringProp(props, "name"),
				Active: boolProp(props, "active"),
			}
			if createdAt := parseNullableTime(stringProp(props, "created_at")); createdAt != nil {
				caller.CreatedAt = *createdAt
			}
			return caller, nil
		}
		return nil, veil_errors.ErrCallerNotFound
	})
	if err != nil {
		return nil, err
	}

	return result.(*model.Caller), nil
}
