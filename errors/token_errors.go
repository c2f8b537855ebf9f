// errors/token_errors.go
package errors

// Token verification failures. The four codes are exhaustive and mutually
// exclusive: a token fails with exactly one of them.
var (
	ErrTokenMalformed     = &Error{Code: "MALFORMED", Message: "token is malformed"}
	ErrTokenInvalid       = &Error{Code: "INVALID", Message: "token payload is invalid"}
	ErrTokenExpired       = &Error{Code: "EXPIRED", Message: "token has expired"}
	ErrVerificationFailed = &Error{Code: "VERIFICATION_FAILED", Message: "token signature verification failed"}
	ErrTokenRevoked       = &Error{Code: "REVOKED", Message: "token has been revoked"}
)
