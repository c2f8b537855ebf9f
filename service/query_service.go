// service/query_service.go
package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/veildata/veil/audit"
	"github.com/veildata/veil/consent"
	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
	"github.com/veildata/veil/privacy"
	"github.com/veildata/veil/ratelimit"
	"github.com/veildata/veil/token"
	"github.com/veildata/veil/util"
)

// Scopes every privacy query needs on the subject's consent, regardless of
// which aggregations are requested.
var queryScopes = []string{"read", "aggregate"}

// RequestMeta carries network metadata for access logging.
type RequestMeta struct {
	Endpoint  string
	ClientIP  string
	UserAgent string
}

// IQueryService defines the interface for privacy query operations
type IQueryService interface {
	ExecuteQuery(ctx context.Context, caller *model.Caller, bearerToken string, req model.QueryRequest, meta RequestMeta) (*model.QueryResult, model.RateLimitDecision, error)
}

// TokenStore reads persisted token records.
type TokenStore interface {
	GetToken(ctx context.Context, tokenID string) (*model.TokenRecord, error)
}

// CategoryStore reads the category catalog.
type CategoryStore interface {
	GetCategory(ctx context.Context, key string) (*model.DataCategory, error)
}

// RecordStore reads raw subject records.
type RecordStore interface {
	GetRecords(ctx context.Context, subjectID, categoryKey string) ([]*model.RawRecord, error)
}

// QueryCache is the subset of the cache the query pipeline touches.
type QueryCache interface {
	GetTokenRecord(ctx context.Context, tokenID string) (*model.TokenRecord, error)
	SetTokenRecord(ctx context.Context, record model.TokenRecord) error
	GetCategory(ctx context.Context, categoryKey string) (*model.DataCategory, error)
	SetCategory(ctx context.Context, category model.DataCategory) error
}

// QueryService runs the consent-gated query pipeline: rate limit, token
// verification against the persisted record, consent evaluation, then the
// noised aggregation over the subject's raw records.
type QueryService struct {
	tokenService   *token.Service
	tokenStore     TokenStore
	evaluator      *consent.Evaluator
	categoryStore  CategoryStore
	recordStore    RecordStore
	limiter        *ratelimit.Limiter
	engine         *privacy.Engine
	bounds         *privacy.BoundsRegistry
	auditService   audit.Service
	cache          QueryCache
	defaultEpsilon float64
	maxEpsilon     float64
	validationUtil *util.ValidationUtil
}

var _ IQueryService = &QueryService{}

// NewQueryService creates a new instance of QueryService
func NewQueryService(
	tokenService *token.Service,
	tokenStore TokenStore,
	evaluator *consent.Evaluator,
	categoryStore CategoryStore,
	recordStore RecordStore,
	limiter *ratelimit.Limiter,
	engine *privacy.Engine,
	bounds *privacy.BoundsRegistry,
	auditService audit.Service,
	cache QueryCache,
	validationUtil *util.ValidationUtil,
	defaultEpsilon float64,
	maxEpsilon float64,
) *QueryService {
	return &QueryService{
		tokenService:   tokenService,
		tokenStore:     tokenStore,
		evaluator:      evaluator,
		categoryStore:  categoryStore,
		recordStore:    recordStore,
		limiter:        limiter,
		engine:         engine,
		bounds:         bounds,
		auditService:   auditService,
		cache:          cache,
		validationUtil: validationUtil,
		defaultEpsilon: defaultEpsilon,
		maxEpsilon:     maxEpsilon,
	}
}

// ExecuteQuery runs the full pipeline for one privacy query. The returned
// RateLimitDecision is valid even on failure so callers can always set the
// rate-limit headers.
func (s *QueryService) ExecuteQuery(ctx context.Context, caller *model.Caller, bearerToken string, req model.QueryRequest, meta RequestMeta) (*model.QueryResult, model.RateLimitDecision, error) {
	if caller == nil {
		return nil, model.RateLimitDecision{}, veil_errors.ErrUnauthenticated
	}

	decision := s.limiter.Check(ctx, caller.Key, "query")
	if !decision.Allowed {
		logger.Warn("Query rate limit exceeded",
			zap.String("callerKey", caller.Key),
			zap.Int("limit", decision.Limit))
		return nil, decision, veil_errors.ErrRateLimited
	}

	claims, err := s.tokenService.Verify(bearerToken)
	if err != nil {
		return nil, decision, err
	}
	if err := s.checkTokenState(ctx, claims); err != nil {
		return nil, decision, err
	}
	if err := s.checkTokenCoverage(claims, req); err != nil {
		return nil, decision, err
	}

	if req.Epsilon == 0 {
		req.Epsilon = s.defaultEpsilon
	}
	if len(req.Aggregations) == 0 {
		req.Aggregations = []string{model.AggCount}
	}
	if err := s.validationUtil.ValidateQueryRequest(req, s.maxEpsilon); err != nil {
		return nil, decision, veil_errors.ErrInvalidParameter.WithReason("%v", err)
	}
	advisory, err := privacy.ValidateEpsilon(req.Epsilon)
	if err != nil {
		return nil, decision, veil_errors.ErrInvalidParameter.WithReason("%v", err)
	}

	subjectID := claims.Subject
	purpose := claims.Purpose

	if err := s.evaluator.EnsureAllowed(ctx, subjectID, []string{req.Category}, purpose, queryScopes); err != nil {
		return nil, decision, err
	}

	if err := s.categoryExists(ctx, req.Category); err != nil {
		return nil, decision, err
	}

	records, err := s.recordStore.GetRecords(ctx, subjectID, req.Category)
	if err != nil {
		logger.Error("Failed to fetch raw records",
			zap.Error(err),
			zap.String("subjectID", subjectID),
			zap.String("category", req.Category))
		return nil, decision, veil_errors.ErrInternalServer
	}

	result, err := s.aggregate(records, req, advisory)
	if err != nil {
		return nil, decision, err
	}
	result.Category = req.Category
	result.Purpose = purpose
	result.Timestamp = time.Now().UTC().Format(time.RFC3339)

	s.emitAccessLog(caller, claims, req.Category, meta)

	return result, decision, nil
}

// checkTokenState cross-checks the verified claims against the persisted
// token record. Revocation lives only in the record, never in the token.
func (s *QueryService) checkTokenState(ctx context.Context, claims *token.ConsentClaims) error {
	record, err := s.cache.GetTokenRecord(ctx, claims.ID)
	if err != nil || record == nil {
		record, err = s.tokenStore.GetToken(ctx, claims.ID)
		if err != nil {
			if errors.Is(err, veil_errors.ErrTokenNotFound) {
				return veil_errors.ErrTokenInvalid.WithReason("token %s has no persisted record", claims.ID)
			}
			logger.Error("Failed to load token record", zap.Error(err), zap.String("tokenID", claims.ID))
			return veil_errors.ErrInternalServer
		}
		if cacheErr := s.cache.SetTokenRecord(ctx, *record); cacheErr != nil {
			logger.Warn("Failed to cache token record", zap.Error(cacheErr), zap.String("tokenID", claims.ID))
		}
	}

	if record.Revoked {
		return veil_errors.ErrTokenRevoked
	}
	if !record.Usable(time.Now()) {
		return veil_errors.ErrTokenExpired
	}
	return nil
}

// checkTokenCoverage ensures the request stays inside what the token was
// issued for.
func (s *QueryService) checkTokenCoverage(claims *token.ConsentClaims, req model.QueryRequest) error {
	if req.Purpose != "" && req.Purpose != claims.Purpose {
		return veil_errors.ErrTokenInvalid.WithReason("token issued for purpose %q, not %q", claims.Purpose, req.Purpose)
	}
	for _, category := range claims.Categories {
		if category == req.Category {
			return nil
		}
	}
	return veil_errors.ErrTokenInvalid.WithReason("token does not cover category %q", req.Category)
}

func (s *QueryService) categoryExists(ctx context.Context, key string) error {
	if cached, err := s.cache.GetCategory(ctx, key); err == nil && cached != nil {
		return nil
	}
	category, err := s.categoryStore.GetCategory(ctx, key)
	if err != nil {
		if errors.Is(err, veil_errors.ErrCategoryNotFound) {
			return veil_errors.ErrUnknownCategory.WithReason("category %q is not in the catalog", key)
		}
		logger.Error("Failed to look up category", zap.Error(err), zap.String("category", key))
		return veil_errors.ErrInternalServer
	}
	if err := s.cache.SetCategory(ctx, *category); err != nil {
		logger.Warn("Failed to cache category", zap.Error(err), zap.String("category", key))
	}
	return nil
}

// aggregate computes the noised response. The record count always consumes
// the caller's full epsilon; the requested aggregations split it evenly
// between them. The even split is a sequential-composition approximation,
// kept deliberately so the total privacy loss stays bounded by epsilon.
func (s *QueryService) aggregate(records []*model.RawRecord, req model.QueryRequest, advisory string) (*model.QueryResult, error) {
	result := &model.QueryResult{
		Results:  make(map[string]*float64),
		Epsilon:  req.Epsilon,
		Advisory: advisory,
	}

	noisedCount, err := s.engine.LaplaceMechanism(float64(len(records)), req.Epsilon, 1)
	if err != nil {
		return nil, veil_errors.ErrInvalidParameter.WithReason("%v", err)
	}
	result.RecordCount = int64(math.Max(0, math.Round(noisedCount)))

	if len(records) == 0 {
		result.NoData = true
		for _, agg := range req.Aggregations {
			result.Results[agg] = nil
		}
		return result, nil
	}

	values := numericLeafValues(records)
	splitEpsilon := req.Epsilon / float64(len(req.Aggregations))

	for _, agg := range req.Aggregations {
		if agg == model.AggCount {
			count := float64(result.RecordCount)
			result.Results[model.AggCount] = &count
			continue
		}
		if len(values) == 0 {
			result.Results[agg] = nil
			continue
		}
		noised, err := s.noisedAggregation(agg, values, req.Category, splitEpsilon)
		if err != nil {
			return nil, veil_errors.ErrInvalidParameter.WithReason("%v", err)
		}
		result.Results[agg] = &noised
	}

	return result, nil
}

func (s *QueryService) noisedAggregation(agg string, values []float64, category string, epsilon float64) (float64, error) {
	switch agg {
	case model.AggMean:
		observedMin, observedMax := minMax(values)
		b := s.bounds.Lookup(category, observedMin, observedMax)
		return s.engine.PrivateMean(values, epsilon, b.Min, b.Max)
	case model.AggSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return s.engine.LaplaceMechanism(sum, epsilon, 1)
	case model.AggMin:
		low, _ := minMax(values)
		return s.engine.LaplaceMechanism(low, epsilon, 1)
	case model.AggMax:
		_, high := minMax(values)
		return s.engine.LaplaceMechanism(high, epsilon, 1)
	default:
		return 0, veil_errors.ErrInvalidParameter.WithReason("unsupported aggregation %q", agg)
	}
}

// emitAccessLog records the access asynchronously. Logging failures never
// fail the query.
func (s *QueryService) emitAccessLog(caller *model.Caller, claims *token.ConsentClaims, category string, meta RequestMeta) {
	entry := audit.AccessLog{
		Timestamp: time.Now().UTC(),
		Subject:   claims.Subject,
		Caller:    caller.Key,
		Category:  category,
		Purpose:   claims.Purpose,
		TokenID:   claims.ID,
		Endpoint:  meta.Endpoint,
		Action:    "query.executed",
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.auditService.LogAccess(ctx, entry); err != nil {
			logger.Warn("Failed to emit access log",
				zap.Error(err),
				zap.String("tokenID", entry.TokenID),
				zap.String("caller", entry.Caller))
		}
	}()
}

// numericLeafValues flattens every numeric leaf across the record payloads,
// descending into nested objects. Non-numeric fields are ignored.
func numericLeafValues(records []*model.RawRecord) []float64 {
	var values []float64
	for _, record := range records {
		for _, raw := range record.Payload {
			values = appendNumericLeaves(values, raw)
		}
	}
	return values
}

func appendNumericLeaves(values []float64, raw interface{}) []float64 {
	switch v := raw.(type) {
	case float64:
		values = append(values, v)
	case float32:
		values = append(values, float64(v))
	case int:
		values = append(values, float64(v))
	case int64:
		values = append(values, float64(v))
	case map[string]interface{}:
		for _, nested := range v {
			values = appendNumericLeaves(values, nested)
		}
	}
	return values
}

func minMax(values []float64) (float64, float64) {
	low, high := values[0], values[0]
	for _, v := range values[1:] {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	return low, high
}
