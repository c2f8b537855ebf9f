// token/service.go
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	veil_errors "github.com/veildata/veil/errors"
)

// ConsentClaims is the signed payload of a consent token. sub, iat, exp and
// jti live in the registered claims.
type ConsentClaims struct {
	Purpose    string   `json:"purpose"`
	Categories []string `json:"categories"`
	Scopes     []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Service mints and verifies signed, time-bounded consent tokens. It is a
// pure credential minter: category and scope content is the consent
// evaluator's business, and revocation is persisted state checked by the
// caller after Verify succeeds.
type Service struct {
	secret []byte
	issuer string
}

// NewService builds a Service around the given symmetric signing secret.
// The secret is injected rather than read from process globals so tests can
// run with distinct secrets.
func NewService(secret []byte, issuer string) *Service {
	return &Service{secret: secret, issuer: issuer}
}

// Issue signs a consent token for the subject and returns the opaque token
// string, its unique id and the numeric expiry.
func (s *Service) Issue(subject, purpose string, categories, scopes []string, ttl time.Duration) (string, string, int64, error) {
	now := time.Now()
	expiry := now.Add(ttl)
	claims := ConsentClaims{
		Purpose:    purpose,
		Categories: categories,
		Scopes:     scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", 0, err
	}
	return signed, claims.ID, expiry.Unix(), nil
}

// Verify validates structure, signature, expiry and claim shape, in that
// order, so each token fails with exactly one taxonomy code.
func (s *Service) Verify(tokenStr string) (*ConsentClaims, error) {
	if tokenStr == "" || len(strings.Split(tokenStr, ".")) != 3 {
		return nil, veil_errors.ErrTokenMalformed
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &ConsentClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, veil_errors.ErrVerificationFailed
		}
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, veil_errors.ErrTokenMalformed
		case errors.Is(err, veil_errors.ErrVerificationFailed):
			return nil, veil_errors.ErrVerificationFailed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, veil_errors.ErrVerificationFailed
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, veil_errors.ErrTokenExpired
		default:
			return nil, veil_errors.ErrTokenInvalid
		}
	}

	claims, ok := parsed.Claims.(*ConsentClaims)
	if !ok || !parsed.Valid {
		return nil, veil_errors.ErrTokenInvalid
	}
	if err := requireClaims(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Decode reads a token without verifying signature or expiry. Diagnostic
// use only; never an authorization input.
func (s *Service) Decode(tokenStr string) *ConsentClaims {
	if tokenStr == "" {
		return nil
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(tokenStr, &ConsentClaims{})
	if err != nil {
		return nil
	}
	claims, ok := parsed.Claims.(*ConsentClaims)
	if !ok {
		return nil
	}
	return claims
}

// requireClaims rejects payloads missing any required field. A signature
// can verify over a payload that was never a consent token.
func requireClaims(c *ConsentClaims) error {
	switch {
	case c.Subject == "":
		return veil_errors.ErrTokenInvalid.WithReason("missing sub claim")
	case c.Purpose == "":
		return veil_errors.ErrTokenInvalid.WithReason("missing purpose claim")
	case c.Categories == nil:
		return veil_errors.ErrTokenInvalid.WithReason("missing categories claim")
	case c.Scopes == nil:
		return veil_errors.ErrTokenInvalid.WithReason("missing scopes claim")
	case c.IssuedAt == nil:
		return veil_errors.ErrTokenInvalid.WithReason("missing iat claim")
	case c.ExpiresAt == nil:
		return veil_errors.ErrTokenInvalid.WithReason("missing exp claim")
	}
	return nil
}
