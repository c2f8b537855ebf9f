// consent/evaluator.go
package consent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
)

// PolicyStore loads the live consent policy rows for one subject. Every
// evaluation goes back to the store; decisions are never made from a
// cached snapshot, since a subject can change their mind at any time.
type PolicyStore interface {
	FetchPolicies(ctx context.Context, subjectID string, categories []string, purpose string) ([]*model.ConsentPolicy, error)
}

// Evaluator enforces a subject's consent policies against a requested set
// of categories, a purpose and the scopes the operation requires.
type Evaluator struct {
	store PolicyStore
	now   func() time.Time
}

func NewEvaluator(store PolicyStore) *Evaluator {
	return &Evaluator{store: store, now: time.Now}
}

// EnsureAllowed succeeds only when every requested category has a GRANTED,
// unexpired policy whose scope set covers the required scopes. It
// short-circuits on the first violation found; the surfaced error names
// the offending category or missing scopes.
func (e *Evaluator) EnsureAllowed(ctx context.Context, subjectID string, categories []string, purpose string, requiredScopes []string) error {
	if subjectID == "" || purpose == "" || len(categories) == 0 || len(requiredScopes) == 0 {
		return veil_errors.ErrInvalidParams.WithReason("subject, categories, purpose and scopes are all required")
	}
	if hasDuplicates(categories) || hasDuplicates(requiredScopes) {
		return veil_errors.ErrInvalidParams.WithReason("categories and scopes must be proper sets")
	}

	policies, err := e.store.FetchPolicies(ctx, subjectID, categories, purpose)
	if err != nil {
		logger.Error("Failed to fetch consent policies",
			zap.Error(err),
			zap.String("subjectID", subjectID),
			zap.String("purpose", purpose))
		return fmt.Errorf("failed to fetch consent policies: %w", err)
	}

	byCategory := make(map[string]*model.ConsentPolicy, len(policies))
	for _, p := range policies {
		byCategory[p.CategoryKey] = p
	}

	var missing []string
	for _, category := range categories {
		if _, ok := byCategory[category]; !ok {
			missing = append(missing, category)
		}
	}
	if len(missing) > 0 {
		return veil_errors.ErrMissingConsent.WithReason("no consent on record for: %s", strings.Join(missing, ", "))
	}

	now := e.now()
	for _, category := range categories {
		policy := byCategory[category]
		switch policy.Status {
		case model.ConsentGranted:
		case model.ConsentRevoked:
			return veil_errors.ErrConsentRevoked.WithReason("consent for %q was revoked", category)
		case model.ConsentRestricted:
			return veil_errors.ErrConsentRestricted.WithReason("consent for %q is restricted", category)
		default:
			return veil_errors.ErrMissingConsent.WithReason("consent for %q has unrecognized status %q", category, policy.Status)
		}
		if policy.Expired(now) {
			return veil_errors.ErrConsentExpired.WithReason("consent for %q expired at %s", category, policy.ExpiresAt.Format(time.RFC3339))
		}
		if ok, missingScopes := policy.HasScopes(requiredScopes); !ok {
			return veil_errors.ErrInsufficientScopes.WithReason("consent for %q lacks scopes: %s", category, strings.Join(missingScopes, ", "))
		}
	}

	return nil
}

func hasDuplicates(values []string) bool {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
