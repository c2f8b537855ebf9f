// service/query_service_test.go
package service_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veildata/veil/consent"
	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
	"github.com/veildata/veil/privacy"
	"github.com/veildata/veil/ratelimit"
	"github.com/veildata/veil/service"
	"github.com/veildata/veil/test/mock"
	"github.com/veildata/veil/token"
	"github.com/veildata/veil/util"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "veil-service-test")
	if err != nil {
		panic(err)
	}
	logger.InitLogger(dir)
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

type queryFixture struct {
	tokenService *token.Service
	tokenStore   *mock.MockTokenStore
	policyStore  *mock.MockPolicyStore
	categories   *mock.MockCategoryStore
	records      *mock.MockRecordStore
	auditService *mock.MockAuditService
	limiter      *ratelimit.Limiter
	service      service.IQueryService
	caller       *model.Caller
}

func newQueryFixture(queryLimit int) *queryFixture {
	f := &queryFixture{
		tokenService: token.NewService([]byte("0123456789abcdef0123456789abcdef"), "veil-test"),
		tokenStore:   &mock.MockTokenStore{Records: map[string]*model.TokenRecord{}},
		policyStore:  &mock.MockPolicyStore{},
		categories: &mock.MockCategoryStore{Categories: map[string]*model.DataCategory{
			"health": {Key: "health", DisplayName: "Health"},
		}},
		records:      &mock.MockRecordStore{},
		auditService: mock.NewMockAuditService(),
		caller:       &model.Caller{Key: "caller-1", Name: "Test Caller", Active: true},
	}

	f.limiter = ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.Config{
		Endpoints: map[string]ratelimit.EndpointLimit{
			"query": {Requests: queryLimit, WindowMs: 60000},
		},
		Default: ratelimit.EndpointLimit{Requests: 100, WindowMs: 60000},
	})

	f.service = service.NewQueryService(
		f.tokenService,
		f.tokenStore,
		consent.NewEvaluator(f.policyStore),
		f.categories,
		f.records,
		f.limiter,
		privacy.NewEngine(),
		privacy.NewBoundsRegistry(),
		f.auditService,
		mock.NoopCache{},
		util.NewValidationUtil(),
		1.0,
		10.0,
	)
	return f
}

// issueToken mints a token and persists its record in the fake store.
func (f *queryFixture) issueToken(t *testing.T, subject, purpose string, categories, scopes []string, ttl time.Duration) string {
	t.Helper()
	signed, tokenID, expiry, err := f.tokenService.Issue(subject, purpose, categories, scopes, ttl)
	require.NoError(t, err)
	f.tokenStore.Records[tokenID] = &model.TokenRecord{
		ID:         tokenID,
		SubjectID:  subject,
		Purpose:    purpose,
		Categories: categories,
		Scopes:     scopes,
		IssuedAt:   time.Now().UTC(),
		ExpiresAt:  time.Unix(expiry, 0).UTC(),
	}
	return signed
}

func (f *queryFixture) grantConsent(category, purpose string, scopes ...string) {
	f.policyStore.Policies = append(f.policyStore.Policies, &model.ConsentPolicy{
		ID:          "policy-" + category,
		SubjectID:   "subject-1",
		CategoryKey: category,
		Purpose:     purpose,
		Status:      model.ConsentGranted,
		Scopes:      scopes,
	})
}

func (f *queryFixture) addRecords(subject, category string, field string, values ...float64) {
	for _, v := range values {
		f.records.Records = append(f.records.Records, &model.RawRecord{
			SubjectID:   subject,
			CategoryKey: category,
			Payload:     map[string]interface{}{field: v},
		})
	}
}

func TestExecuteQueryEndToEnd(t *testing.T) {
	f := newQueryFixture(30)
	f.grantConsent("health", "telemedicine", "read", "analyze", "aggregate")

	// 30 records with a steps field averaging ~8000.
	values := make([]float64, 30)
	for i := range values {
		values[i] = 8000 + float64(i-15)*10
	}
	f.addRecords("subject-1", "health", "steps", values...)

	bearer := f.issueToken(t, "subject-1", "telemedicine", []string{"health"}, []string{"read", "analyze", "aggregate"}, time.Hour)

	result, decision, err := f.service.ExecuteQuery(context.Background(), f.caller, bearer, model.QueryRequest{
		Category:     "health",
		Epsilon:      1.0,
		Aggregations: []string{"mean", "count"},
	}, service.RequestMeta{Endpoint: "/api/v1/query", ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, decision.Allowed)
	assert.Equal(t, "health", result.Category)
	assert.Equal(t, "telemedicine", result.Purpose)
	assert.Equal(t, 1.0, result.Epsilon)
	assert.False(t, result.NoData)
	assert.NotEmpty(t, result.Timestamp)

	// Count uses the full epsilon with sensitivity 1; noise beyond +-30
	// would be a 30-scale outlier.
	assert.GreaterOrEqual(t, result.RecordCount, int64(0))
	assert.InDelta(t, 30, float64(result.RecordCount), 30)

	require.NotNil(t, result.Results["mean"])
	// Mean gets epsilon/2 with the registered health bounds, so sensitivity
	// is (20000-0)/30 and the noise scale ~1333. A deviation past 20000 is
	// a 15-scale outlier.
	assert.InDelta(t, 8000, *result.Results["mean"], 20000)

	require.NotNil(t, result.Results["count"])
	assert.Equal(t, float64(result.RecordCount), *result.Results["count"])

	// The access log lands asynchronously.
	select {
	case <-f.auditService.Logged:
	case <-time.After(2 * time.Second):
		t.Fatal("access log was never emitted")
	}
	logs := f.auditService.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "subject-1", logs[0].Subject)
	assert.Equal(t, "caller-1", logs[0].Caller)
	assert.Equal(t, "health", logs[0].Category)
}

func TestExecuteQueryNoData(t *testing.T) {
	f := newQueryFixture(30)
	f.grantConsent("health", "research", "read", "aggregate")
	bearer := f.issueToken(t, "subject-1", "research", []string{"health"}, []string{"read", "aggregate"}, time.Hour)

	result, _, err := f.service.ExecuteQuery(context.Background(), f.caller, bearer, model.QueryRequest{
		Category:     "health",
		Epsilon:      1.0,
		Aggregations: []string{"mean"},
	}, service.RequestMeta{})
	require.NoError(t, err)

	assert.True(t, result.NoData)
	assert.GreaterOrEqual(t, result.RecordCount, int64(0))
	value, present := result.Results["mean"]
	assert.True(t, present)
	assert.Nil(t, value)
}

func TestExecuteQueryRateLimited(t *testing.T) {
	f := newQueryFixture(1)
	f.grantConsent("health", "research", "read", "aggregate")
	bearer := f.issueToken(t, "subject-1", "research", []string{"health"}, []string{"read", "aggregate"}, time.Hour)

	_, _, err := f.service.ExecuteQuery(context.Background(), f.caller, bearer, model.QueryRequest{Category: "health"}, service.RequestMeta{})
	require.NoError(t, err)

	_, decision, err := f.service.ExecuteQuery(context.Background(), f.caller, bearer, model.QueryRequest{Category: "health"}, service.RequestMeta{})
	assert.ErrorIs(t, err, veil_errors.ErrRateLimited)
	assert.False(t, decision.Allowed)
	assert.Positive(t, decision.RetryAfter)
}

func TestExecuteQueryRevokedToken(t *testing.T) {
	f := newQueryFixture(30)
	f.grantConsent("health", "research", "read", "aggregate")
	bearer := f.issueToken(t, "subject-1", "research", []string{"health"}, []string{"read", "aggregate"}, time.Hour)

	for _, record := range f.tokenStore.Records {
		record.Revoked = true
	}

	_, _, err := f.service.ExecuteQuery(context.Background(), f.caller, bearer, model.QueryRequest{Category: "health"}, service.RequestMeta{})
	assert.ErrorIs(t, err, veil_errors.ErrTokenRevoked)
}

func TestExecuteQueryUnknownTokenRecord(t *testing.T) {
	f := newQueryFixture(30)
	f.grantConsent("health", "research", "read", "aggregate")
	bearer := f.issueToken(t, "subject-1", "research", []string{"health"}, []string{"read", "aggregate"}, time.Hour)

	// Drop the persisted record; the signature alone must not be enough.
	f.tokenStore.Records = map[string]*model.TokenRecord{}

	_, _, err := f.service.ExecuteQuery(context.Background(), f.caller, bearer, model.QueryRequest{Category: "health"}, service.RequestMeta{})
	assert.ErrorIs(t, err, veil_errors.ErrTokenInvalid)
}

func TestExecuteQueryTokenDoesNotCoverCategory(t *testing.T) {
	f := newQueryFixture(30)
	f.grantConsent("health", "research", "read", "aggregate")
	bearer := f.issueToken(t, "subject-1", "research", []string{"location"}, []string{"read", "aggregate"}, time.Hour)

	_, _, err := f.service.ExecuteQuery(context.Background(), f.caller, bearer, model.QueryRequest{Category: "health"}, service.RequestMeta{})
	assert.ErrorIs(t, err, veil_errors.ErrTokenInvalid)
}

func TestExecuteQueryMissingConsent(t *testing.T) {
	f := newQueryFixture(30)
	bearer := f.issueToken(t, "subject-1", "research", []string{"health"}, []string{"read", "aggregate"}, time.Hour)

	_, _, err := f.service.ExecuteQuery(context.Background(), f.caller, bearer, model.QueryRequest{Category: "health"}, service.RequestMeta{})
	assert.ErrorIs(t, err, veil_errors.ErrMissingConsent)
}

func TestExecuteQueryInsufficientScopes(t *testing.T) {
	f := newQueryFixture(30)
	f.grantConsent("health", "research", "read")
	bearer := f.issueToken(t, "subject-1", "research", []string{"health"}, []string{"read"}, time.Hour)

	_, _, err := f.service.ExecuteQuery(context.Background(), f.caller, bearer, model.QueryRequest{Category: "health"}, service.RequestMeta{})
	assert.ErrorIs(t, err, veil_errors.ErrInsufficientScopes)
}

func TestExecuteQueryUnknownCategory(t *testing.T) {
	f := newQueryFixture(30)
	f.grantConsent("mystery", "research", "read", "aggregate")
	bearer := f.issueToken(t, "subject-1", "research", []string{"mystery"}, []string{"read", "aggregate"}, time.Hour)

	_, _, err := f.service.ExecuteQuery(context.Background(), f.caller, bearer, model.QueryRequest{Category: "mystery"}, service.RequestMeta{})
	assert.ErrorIs(t, err, veil_errors.ErrUnknownCategory)
}

func TestExecuteQueryEpsilonOutOfRange(t *testing.T) {
	f := newQueryFixture(30)
	f.grantConsent("health", "research", "read", "aggregate")
	bearer := f.issueToken(t, "subject-1", "research", []string{"health"}, []string{"read", "aggregate"}, time.Hour)

	_, _, err := f.service.ExecuteQuery(context.Background(), f.caller, bearer, model.QueryRequest{
		Category: "health",
		Epsilon:  11.0,
	}, service.RequestMeta{})
	assert.ErrorIs(t, err, veil_errors.ErrInvalidParameter)
}

func TestExecuteQueryDefaults(t *testing.T) {
	f := newQueryFixture(30)
	f.grantConsent("health", "research", "read", "aggregate")
	f.addRecords("subject-1", "health", "steps", 100, 200, 300)
	bearer := f.issueToken(t, "subject-1", "research", []string{"health"}, []string{"read", "aggregate"}, time.Hour)

	// No epsilon, no aggregations: defaults to epsilon 1.0 and ["count"].
	result, _, err := f.service.ExecuteQuery(context.Background(), f.caller, bearer, model.QueryRequest{Category: "health"}, service.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Epsilon)
	require.NotNil(t, result.Results["count"])
}

func TestExecuteQueryNilCaller(t *testing.T) {
	f := newQueryFixture(30)

	_, _, err := f.service.ExecuteQuery(context.Background(), nil, "whatever", model.QueryRequest{Category: "health"}, service.RequestMeta{})
	assert.ErrorIs(t, err, veil_errors.ErrUnauthenticated)
}
