// model/consent.go
package model

import (
	"time"
)

// Consent policy statuses. Transitions between them are unrestricted; each
// evaluation reads the live row, never a snapshot.
const (
	ConsentGranted    = "GRANTED"
	ConsentRestricted = "RESTRICTED"
	ConsentRevoked    = "REVOKED"
)

// ConsentPolicy is one subject's standing decision for a (category, purpose)
// pair: whether access is granted and under which scopes.
type ConsentPolicy struct {
	ID          string     `json:"id"`
	SubjectID   string     `json:"subject_id"`
	CategoryKey string     `json:"category_key"`
	Purpose     string     `json:"purpose"`
	Status      string     `json:"status"`
	Scopes      []string   `json:"scopes"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Expired reports whether the policy carries an expiry in the past.
func (p *ConsentPolicy) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// HasScopes reports whether every required scope is granted by the policy,
// returning the missing ones otherwise.
func (p *ConsentPolicy) HasScopes(required []string) (bool, []string) {
	granted := make(map[string]struct{}, len(p.Scopes))
	for _, s := range p.Scopes {
		granted[s] = struct{}{}
	}
	var missing []string
	for _, s := range required {
		if _, ok := granted[s]; !ok {
			missing = append(missing, s)
		}
	}
	return len(missing) == 0, missing
}

// PolicySearchCriteria filters consent policies for the management API.
type PolicySearchCriteria struct {
	SubjectID   string `json:"subject_id"`
	CategoryKey string `json:"category_key"`
	Purpose     string `json:"purpose"`
	Status      string `json:"status"`
	Limit       int    `json:"limit"`
}
