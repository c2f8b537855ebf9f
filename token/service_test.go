// token/service_test.go
package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	veil_errors "github.com/veildata/veil/errors"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestService() *Service {
	return NewService(testSecret, "veil-test")
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	svc := newTestService()

	signed, tokenID, expiry, err := svc.Issue("subject-1", "telemedicine", []string{"health"}, []string{"read", "aggregate"}, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, tokenID)
	assert.Greater(t, expiry, time.Now().Unix())

	claims, err := svc.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", claims.Subject)
	assert.Equal(t, "telemedicine", claims.Purpose)
	assert.Equal(t, []string{"health"}, claims.Categories)
	assert.Equal(t, []string{"read", "aggregate"}, claims.Scopes)
	assert.Equal(t, tokenID, claims.ID)
}

func TestVerifyMalformed(t *testing.T) {
	svc := newTestService()

	for _, tokenStr := range []string{"", "just-a-string", "two.segments", "a.b.c"} {
		_, err := svc.Verify(tokenStr)
		assert.ErrorIs(t, err, veil_errors.ErrTokenMalformed, "token %q", tokenStr)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	svc := newTestService()
	other := NewService([]byte("another-secret-another-secret-ab"), "veil-test")

	signed, _, _, err := other.Issue("subject-1", "research", []string{"health"}, []string{"read"}, time.Hour)
	require.NoError(t, err)

	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, veil_errors.ErrVerificationFailed)
}

func TestVerifyTamperedPayload(t *testing.T) {
	svc := newTestService()

	signed, _, _, err := svc.Issue("subject-1", "research", []string{"health"}, []string{"read"}, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	// Re-sign nothing; just swap the payload for a different valid one.
	other, _, _, err := svc.Issue("subject-2", "research", []string{"health"}, []string{"read"}, time.Hour)
	require.NoError(t, err)
	tampered := parts[0] + "." + strings.Split(other, ".")[1] + "." + parts[2]

	_, err = svc.Verify(tampered)
	assert.ErrorIs(t, err, veil_errors.ErrVerificationFailed)
}

func TestVerifyExpired(t *testing.T) {
	svc := newTestService()

	signed, _, _, err := svc.Issue("subject-1", "research", []string{"health"}, []string{"read"}, -time.Hour)
	require.NoError(t, err)

	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, veil_errors.ErrTokenExpired)
}

// An expired token with a broken signature must fail on the signature, not
// the expiry: the failure codes are mutually exclusive and ordered.
func TestVerifySignaturePrecedesExpiry(t *testing.T) {
	svc := newTestService()
	other := NewService([]byte("another-secret-another-secret-ab"), "veil-test")

	signed, _, _, err := other.Issue("subject-1", "research", []string{"health"}, []string{"read"}, -time.Hour)
	require.NoError(t, err)

	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, veil_errors.ErrVerificationFailed)
}

func TestVerifyRejectsMissingClaims(t *testing.T) {
	svc := newTestService()

	// Signed with the right secret but the payload was never a consent
	// token: no purpose, categories or scopes.
	bare := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "subject-1",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := bare.SignedString(testSecret)
	require.NoError(t, err)

	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, veil_errors.ErrTokenInvalid)
}

func TestDecodeWithoutVerification(t *testing.T) {
	svc := newTestService()

	signed, tokenID, _, err := svc.Issue("subject-1", "research", []string{"health"}, []string{"read"}, -time.Hour)
	require.NoError(t, err)

	// Expired tokens still decode.
	claims := svc.Decode(signed)
	require.NotNil(t, claims)
	assert.Equal(t, tokenID, claims.ID)
	assert.Equal(t, "subject-1", claims.Subject)

	assert.Nil(t, svc.Decode(""))
	assert.Nil(t, svc.Decode("garbage"))
}
