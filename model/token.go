// model/token.go
package model

import "time"

// TokenRecord is the persisted, authoritative state of an issued consent
// token, keyed by the token's unique id. Revocation lives here rather than
// in the signed payload so it takes effect before the natural expiry.
// The Revoked flag is monotonic: false to true only.
type TokenRecord struct {
	ID         string     `json:"id"`
	SubjectID  string     `json:"subject_id"`
	Purpose    string     `json:"purpose"`
	Categories []string   `json:"categories"`
	Scopes     []string   `json:"scopes"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Revoked    bool       `json:"revoked"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Usable reports whether the persisted record still authorizes operations.
func (r *TokenRecord) Usable(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}
