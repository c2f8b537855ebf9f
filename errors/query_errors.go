// errors/query_errors.go
package errors

import "errors"

// Query orchestration failures.
var (
	ErrUnauthenticated  = &Error{Code: "UNAUTHENTICATED", Message: "unknown or missing API key"}
	ErrRateLimited      = &Error{Code: "RATE_LIMITED", Message: "rate limit exceeded"}
	ErrUnknownCategory  = &Error{Code: "UNKNOWN_CATEGORY", Message: "unknown data category"}
	ErrInvalidParameter = &Error{Code: "INVALID_PARAMETER", Message: "invalid query parameter"}
	ErrEmptyInput       = &Error{Code: "EMPTY_INPUT", Message: "no input values"}
	ErrInternalServer   = &Error{Code: "INTERNAL_ERROR", Message: "internal server error"}
)

// Store-level sentinels used by the DAOs. These surface as 500s; the rate
// limiter is the only component that fails open on them.
var (
	ErrDatabaseOperation = errors.New("database operation failed")
	ErrPolicyNotFound    = errors.New("consent policy not found")
	ErrPolicyConflict    = errors.New("consent policy conflict")
	ErrCategoryNotFound  = errors.New("data category not found")
	ErrCategoryConflict  = errors.New("data category conflict")
	ErrCallerNotFound    = errors.New("caller not found")
	ErrTokenNotFound     = errors.New("token record not found")
	ErrInvalidPolicyData = errors.New("invalid consent policy data")
)
