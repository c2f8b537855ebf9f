// service/category_service.go
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

// ICategoryService defines the interface for category catalog operations
type ICategoryService interface {
	CreateCategory(ctx context.Context, category model.DataCategory) (*model.DataCategory, error)
	GetCategory(ctx context.Context, key string) (*model.DataCategory, error)
	ListCategories(ctx context.Context) ([]*model.DataCategory, error)
}

// CategoryService handles business logic for the data category catalog
type CategoryService struct {
	categoryDAO    *dao.CategoryDAO
	validationUtil *util.ValidationUtil
	cacheService   *util.CacheService
}

var _ ICategoryService = &CategoryService{}

// NewCategoryService creates a new instance of CategoryService
func NewCategoryService(categoryDAO *dao.CategoryDAO, validationUtil *util.ValidationUtil, cacheService *util.CacheService) *CategoryService {
	return &CategoryService{
		categoryDAO:    categoryDAO,
		validationUtil: validationUtil,
		cacheService:   cacheService,
	}
}

// CreateCategory registers a new data category in the catalog
func (s *CategoryService) CreateCategory(ctx context.Context, category model.DataCategory) (*model.DataCategory, error) {
	if err := s.validationUtil.ValidateCategory(category); err != nil {
		return nil, veil_errors.ErrInvalidParams.WithReason("%v", err)
	}

	category.CreatedAt = time.Now().UTC()
	if _, err := s.categoryDAO.CreateCategory(ctx, category); err != nil {
		if errors.Is(err, veil_errors.ErrCategoryConflict) {
			return nil, veil_errors.ErrCategoryConflict
		}
		logger.Error("Error creating category", zap.Error(err), zap.String("key", category.Key))
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	if err := s.cacheService.SetCategory(ctx, category); err != nil {
		logger.Warn("Failed to cache category", zap.Error(err), zap.String("key", category.Key))
	}

	logger.Info("Data category created", zap.String("key", category.Key))
	return &category, nil
}

// GetCategory retrieves a category by its key
func (s *CategoryService) GetCategory(ctx context.Context, key string) (*model.DataCategory, error) {
	cached, err := s.cacheService.GetCategory(ctx, key)
	if err == nil && cached != nil {
		return cached, nil
	}

	category, err := s.categoryDAO.GetCategory(ctx, key)
	if err != nil {
		if errors.Is(err, veil_errors.ErrCategoryNotFound) {
			return nil, veil_errors.ErrCategoryNotFound
		}
		logger.Error("Error retrieving category", zap.Error(err), zap.String("key", key))
		return nil, veil_errors.ErrInternalServer
	}

	if err := s.cacheService.SetCategory(ctx, *category); err != nil {
		logger.Warn("Failed to cache category", zap.Error(err), zap.String("key", key))
	}

	return category, nil
}

// ListCategories retrieves the full category catalog
func (s *CategoryService) ListCategories(ctx context.Context) ([]*model.DataCategory, error) {
	categories, err := s.categoryDAO.ListCategories(ctx)
	if err != nil {
		logger.Error("Error listing categories", zap.Error(err))
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}
