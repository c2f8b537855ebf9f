// util/cache_service.go

package util

import (
	"context"

	"github.com/veildata/veil/db"
	"github.com/veildata/veil/model"
)

type CacheService struct{}

func NewCacheService() *CacheService {
	return &CacheService{}
}

func (c *CacheService) GetConsentPolicy(ctx context.Context, policyID string) (*model.ConsentPolicy, error) {
	return db.GetCachedConsentPolicy(ctx, policyID)
}

func (c *CacheService) SetConsentPolicy(ctx context.Context, policy model.ConsentPolicy) error {
	return db.CacheConsentPolicy(ctx, &policy)
}

func (c *CacheService) DeleteConsentPolicy(ctx context.Context, policyID string) error {
	return db.DeleteCachedConsentPolicy(ctx, policyID)
}

func (c *CacheService) GetCategory(ctx context.Context, categoryKey string) (*model.DataCategory, error) {
	return db.GetCachedCategory(ctx, categoryKey)
}

func (c *CacheService) SetCategory(ctx context.Context, category model.DataCategory) error {
	return db.CacheCategory(ctx, &category)
}

func (c *CacheService) DeleteCategory(ctx context.Context, categoryKey string) error {
	return db.DeleteCachedCategory(ctx, categoryKey)
}

func (c *CacheService) GetTokenRecord(ctx context.Context, tokenID string) (*model.TokenRecord, error) {
	return db.GetCachedTokenRecord(ctx, tokenID)
}

func (c *CacheService) SetTokenRecord(ctx context.Context, record model.TokenRecord) error {
	return db.CacheTokenRecord(ctx, &record)
}

func (c *CacheService) DeleteTokenRecord(ctx context.Context, tokenID string) error {
	return db.DeleteCachedTokenRecord(ctx, tokenID)
}
