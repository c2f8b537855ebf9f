// service/consent_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veildata/veil/dao"
	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
	"github.com/veildata/veil/util"
)

// IConsentService defines the interface for consent policy operations
type IConsentService interface {
	UpsertPolicy(ctx context.Context, policy model.ConsentPolicy, actorID string) (*model.ConsentPolicy, error)
	GetPolicy(ctx context.Context, policyID string) (*model.ConsentPolicy, error)
	SearchPolicies(ctx context.Context, criteria model.PolicySearchCriteria) ([]*model.ConsentPolicy, error)
	DeletePolicy(ctx context.Context, policyID string, actorID string) error
	BulkUpsertPolicies(ctx context.Context, policies []model.ConsentPolicy, actorID string) ([]string, error)
}

// ConsentService handles business logic for consent policy operations
type ConsentService struct {
	policyDAO       *dao.ConsentPolicyDAO
	validationUtil  *util.ValidationUtil
	cacheService    *util.CacheService
	notificationSvc *util.NotificationService
	eventBus        *util.EventBus
}

var _ IConsentService = &ConsentService{}

// NewConsentService creates a new instance of ConsentService
func NewConsentService(policyDAO *dao.ConsentPolicyDAO, validationUtil *util.ValidationUtil, cacheService *util.CacheService, notificationSvc *util.NotificationService, eventBus *util.EventBus) *ConsentService {
	service := &ConsentService{
		policyDAO:       policyDAO,
		validationUtil:  validationUtil,
		cacheService:    cacheService,
		notificationSvc: notificationSvc,
		eventBus:        eventBus,
	}

	// Set up event subscriptions
	eventBus.Subscribe("consent.updated", service.handleConsentUpdated)
	eventBus.Subscribe("consent.deleted", service.handleConsentDeleted)

	return service
}

func (s *ConsentService) handleConsentUpdated(ctx context.Context, event util.Event) error {
	policy, ok := event.Payload.(model.ConsentPolicy)
	if !ok {
		logger.Error("Invalid event payload type", zap.Any("payload", event.Payload))
		return fmt.Errorf("invalid event payload type: %T", event.Payload)
	}

	logger.Info("Consent updated event received",
		zap.String("policyID", policy.ID),
		zap.String("subjectID", policy.SubjectID),
		zap.String("status", policy.Status))

	if err := s.notificationSvc.NotifyConsentChange(ctx, "updated", policy); err != nil {
		logger.Warn("Failed to send consent change notification", zap.Error(err), zap.String("policyID", policy.ID))
	}

	return nil
}

func (s *ConsentService) handleConsentDeleted(ctx context.Context, event util.Event) error {
	policyID, ok := event.Payload.(string)
	if !ok {
		logger.Error("Invalid event payload type", zap.Any("payload", event.Payload))
		return fmt.Errorf("invalid event payload type: %T", event.Payload)
	}

	logger.Info("Consent deleted event received", zap.String("policyID", policyID))

	if err := s.notificationSvc.NotifyConsentChange(ctx, "deleted", model.ConsentPolicy{ID: policyID}); err != nil {
		logger.Warn("Failed to send consent deletion notification", zap.Error(err), zap.String("policyID", policyID))
	}

	return nil
}

// UpsertPolicy creates or replaces the consent policy for a
// (subject, category, purpose) tuple
func (s *ConsentService) UpsertPolicy(ctx context.Context, policy model.ConsentPolicy, actorID string) (*model.ConsentPolicy, error) {
	if err := s.validationUtil.ValidateConsentPolicy(policy); err != nil {
		return nil, veil_errors.ErrInvalidParams.WithReason("%v", err)
	}

	now := time.Now().UTC()
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = now
	}
	policy.UpdatedAt = now

	policyID, err := s.policyDAO.UpsertPolicy(ctx, policy, actorID)
	if err != nil {
		if errors.Is(err, veil_errors.ErrCategoryNotFound) {
			return nil, err
		}
		logger.Error("Error upserting consent policy",
			zap.Error(err),
			zap.String("subjectID", policy.SubjectID),
			zap.String("category", policy.CategoryKey))
		return nil, fmt.Errorf("failed to upsert consent policy: %w", err)
	}
	policy.ID = policyID

	// Update cache
	if err := s.cacheService.SetConsentPolicy(ctx, policy); err != nil {
		logger.Warn("Failed to cache consent policy", zap.Error(err), zap.String("policyID", policyID))
	}

	// Publish event for asynchronous processing
	s.eventBus.Publish(ctx, "consent.updated", policy)

	logger.Info("Consent policy upserted",
		zap.String("policyID", policyID),
		zap.String("subjectID", policy.SubjectID),
		zap.String("status", policy.Status))
	return &policy, nil
}

// GetPolicy retrieves a consent policy by its ID
func (s *ConsentService) GetPolicy(ctx context.Context, policyID string) (*model.ConsentPolicy, error) {
	// Try to get from cache first
	cachedPolicy, err := s.cacheService.GetConsentPolicy(ctx, policyID)
	if err == nil && cachedPolicy != nil {
		return cachedPolicy, nil
	}

	policy, err := s.policyDAO.GetPolicy(ctx, policyID)
	if err != nil {
		if errors.Is(err, veil_errors.ErrPolicyNotFound) {
			return nil, veil_errors.ErrPolicyNotFound
		}
		logger.Error("Error retrieving consent policy", zap.Error(err), zap.String("policyID", policyID))
		return nil, veil_errors.ErrInternalServer
	}

	// Update cache
	if err := s.cacheService.SetConsentPolicy(ctx, *policy); err != nil {
		logger.Warn("Failed to cache consent policy", zap.Error(err), zap.String("policyID", policyID))
	}

	return policy, nil
}

// SearchPolicies retrieves consent policies matching the criteria
func (s *ConsentService) SearchPolicies(ctx context.Context, criteria model.PolicySearchCriteria) ([]*model.ConsentPolicy, error) {
	policies, err := s.policyDAO.SearchPolicies(ctx, criteria)
	if err != nil {
		logger.Error("Error searching consent policies", zap.Error(err), zap.String("subjectID", criteria.SubjectID))
		return nil, fmt.Errorf("failed to search consent policies: %w", err)
	}
	return policies, nil
}

// DeletePolicy removes a consent policy
func (s *ConsentService) DeletePolicy(ctx context.Context, policyID string, actorID string) error {
	if err := s.policyDAO.DeletePolicy(ctx, policyID, actorID); err != nil {
		if errors.Is(err, veil_errors.ErrPolicyNotFound) {
			return veil_errors.ErrPolicyNotFound
		}
		logger.Error("Error deleting consent policy", zap.Error(err), zap.String("policyID", policyID))
		return fmt.Errorf("failed to delete consent policy: %w", err)
	}

	// Remove from cache
	if err := s.cacheService.DeleteConsentPolicy(ctx, policyID); err != nil {
		logger.Warn("Failed to delete consent policy from cache", zap.Error(err), zap.String("policyID", policyID))
	}

	// Publish event for asynchronous processing
	s.eventBus.Publish(ctx, "consent.deleted", policyID)

	logger.Info("Consent policy deleted", zap.String("policyID", policyID), zap.String("actorID", actorID))
	return nil
}

// BulkUpsertPolicies upserts multiple consent policies in parallel
func (s *ConsentService) BulkUpsertPolicies(ctx context.Context, policies []model.ConsentPolicy, actorID string) ([]string, error) {
	g, ctx := errgroup.WithContext(ctx)
	policyIDs := make([]string, len(policies))

	// Limit concurrency to avoid overwhelming the store
	semaphore := make(chan struct{}, 10)

	for i, policy := range policies {
		i, policy := i, policy
		g.Go(func() error {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			upserted, err := s.UpsertPolicy(ctx, policy, actorID)
			if err != nil {
				return err
			}
			policyIDs[i] = upserted.ID
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Bulk consent upsert failed", zap.Error(err), zap.String("actorID", actorID))
		return nil, fmt.Errorf("bulk upsert failed: %w", err)
	}

	return policyIDs, nil
}
