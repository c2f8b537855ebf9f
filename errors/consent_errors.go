// errors/consent_errors.go
package errors

// Consent evaluation failures. Each carries the first detected violation;
// the evaluator short-circuits rather than collecting every failure.
var (
	ErrInvalidParams      = &Error{Code: "INVALID_PARAMS", Message: "invalid evaluation parameters"}
	ErrMissingConsent     = &Error{Code: "MISSING_CONSENT", Message: "no consent on record"}
	ErrConsentRevoked     = &Error{Code: "CONSENT_REVOKED", Message: "consent has been revoked"}
	ErrConsentRestricted  = &Error{Code: "CONSENT_RESTRICTED", Message: "consent is restricted"}
	ErrConsentExpired     = &Error{Code: "CONSENT_EXPIRED", Message: "consent has expired"}
	ErrInsufficientScopes = &Error{Code: "INSUFFICIENT_SCOPES", Message: "consent does not grant the required scopes"}
)
