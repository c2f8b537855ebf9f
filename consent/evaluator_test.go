// consent/evaluator_test.go
package consent

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "veil-consent-test")
	if err != nil {
		panic(err)
	}
	logger.InitLogger(dir)
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

type fakePolicyStore struct {
	policies []*model.ConsentPolicy
	err      error
	calls    int
}

func (f *fakePolicyStore) FetchPolicies(_ context.Context, _ string, _ []string, _ string) ([]*model.ConsentPolicy, error) {
	f.calls++
	return f.policies, f.err
}

func grantedPolicy(category string, scopes ...string) *model.ConsentPolicy {
	return &model.ConsentPolicy{
		ID:          "policy-" + category,
		SubjectID:   "subject-1",
		CategoryKey: category,
		Purpose:     "research",
		Status:      model.ConsentGranted,
		Scopes:      scopes,
	}
}

func TestEnsureAllowedInvalidParams(t *testing.T) {
	store := &fakePolicyStore{}
	e := NewEvaluator(store)
	ctx := context.Background()

	cases := []struct {
		name       string
		subject    string
		categories []string
		purpose    string
		scopes     []string
	}{
		{"missing subject", "", []string{"health"}, "research", []string{"read"}},
		{"missing categories", "subject-1", nil, "research", []string{"read"}},
		{"missing purpose", "subject-1", []string{"health"}, "", []string{"read"}},
		{"missing scopes", "subject-1", []string{"health"}, "research", nil},
		{"duplicate categories", "subject-1", []string{"health", "health"}, "research", []string{"read"}},
		{"duplicate scopes", "subject-1", []string{"health"}, "research", []string{"read", "read"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := e.EnsureAllowed(ctx, tc.subject, tc.categories, tc.purpose, tc.scopes)
			assert.ErrorIs(t, err, veil_errors.ErrInvalidParams)
		})
	}

	// Parameter validation happens before any store access.
	assert.Zero(t, store.calls)
}

func TestEnsureAllowedGranted(t *testing.T) {
	store := &fakePolicyStore{policies: []*model.ConsentPolicy{
		grantedPolicy("health", "read", "analyze", "aggregate"),
	}}
	e := NewEvaluator(store)

	err := e.EnsureAllowed(context.Background(), "subject-1", []string{"health"}, "research", []string{"read", "aggregate"})
	assert.NoError(t, err)
}

func TestEnsureAllowedMissingConsent(t *testing.T) {
	store := &fakePolicyStore{policies: []*model.ConsentPolicy{
		grantedPolicy("health", "read", "aggregate"),
	}}
	e := NewEvaluator(store)

	err := e.EnsureAllowed(context.Background(), "subject-1", []string{"health", "location"}, "research", []string{"read"})
	require.ErrorIs(t, err, veil_errors.ErrMissingConsent)
	assert.Contains(t, err.Error(), "location")
}

func TestEnsureAllowedRevoked(t *testing.T) {
	revoked := grantedPolicy("health", "read", "aggregate")
	revoked.Status = model.ConsentRevoked
	store := &fakePolicyStore{policies: []*model.ConsentPolicy{revoked}}
	e := NewEvaluator(store)

	err := e.EnsureAllowed(context.Background(), "subject-1", []string{"health"}, "research", []string{"read"})
	assert.ErrorIs(t, err, veil_errors.ErrConsentRevoked)
}

func TestEnsureAllowedRestricted(t *testing.T) {
	restricted := grantedPolicy("health", "read", "aggregate")
	restricted.Status = model.ConsentRestricted
	store := &fakePolicyStore{policies: []*model.ConsentPolicy{restricted}}
	e := NewEvaluator(store)

	err := e.EnsureAllowed(context.Background(), "subject-1", []string{"health"}, "research", []string{"read"})
	assert.ErrorIs(t, err, veil_errors.ErrConsentRestricted)
}

func TestEnsureAllowedExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	expired := grantedPolicy("health", "read", "aggregate")
	expired.ExpiresAt = &past
	store := &fakePolicyStore{policies: []*model.ConsentPolicy{expired}}
	e := NewEvaluator(store)

	err := e.EnsureAllowed(context.Background(), "subject-1", []string{"health"}, "research", []string{"read"})
	assert.ErrorIs(t, err, veil_errors.ErrConsentExpired)
}

func TestEnsureAllowedInsufficientScopes(t *testing.T) {
	store := &fakePolicyStore{policies: []*model.ConsentPolicy{
		grantedPolicy("health", "read"),
	}}
	e := NewEvaluator(store)

	err := e.EnsureAllowed(context.Background(), "subject-1", []string{"health"}, "research", []string{"read", "aggregate"})
	require.ErrorIs(t, err, veil_errors.ErrInsufficientScopes)
	assert.Contains(t, err.Error(), "aggregate")
}

// Revocation outranks expiry: a policy that is both revoked and expired
// reports the revocation.
func TestEnsureAllowedRevokedBeatsExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	p := grantedPolicy("health", "read")
	p.Status = model.ConsentRevoked
	p.ExpiresAt = &past
	store := &fakePolicyStore{policies: []*model.ConsentPolicy{p}}
	e := NewEvaluator(store)

	err := e.EnsureAllowed(context.Background(), "subject-1", []string{"health"}, "research", []string{"read"})
	assert.ErrorIs(t, err, veil_errors.ErrConsentRevoked)
}

func TestEnsureAllowedUnrecognizedStatus(t *testing.T) {
	odd := grantedPolicy("health", "read")
	odd.Status = "PENDING"
	store := &fakePolicyStore{policies: []*model.ConsentPolicy{odd}}
	e := NewEvaluator(store)

	err := e.EnsureAllowed(context.Background(), "subject-1", []string{"health"}, "research", []string{"read"})
	assert.ErrorIs(t, err, veil_errors.ErrMissingConsent)
}

func TestEnsureAllowedStoreError(t *testing.T) {
	storeErr := errors.New("neo4j unavailable")
	store := &fakePolicyStore{err: storeErr}
	e := NewEvaluator(store)

	err := e.EnsureAllowed(context.Background(), "subject-1", []string{"health"}, "research", []string{"read"})
	assert.ErrorIs(t, err, storeErr)
}
