// errors/errors.go
package errors

import "fmt"

// Error is a denial or failure with a stable machine code and a short
// human-readable reason. Automated clients match on Code; the reason is
// display text for the subject (e.g. which category's consent is missing).
type Error struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Reason  string `json:"reason,omitempty"`
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Reason)
	}
	return e.Message
}

// Is matches two Errors by code, so errors.Is works on reason-carrying
// copies of the taxonomy sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithReason returns a copy of the error carrying a formatted reason.
// The original sentinel is never mutated.
func (e *Error) WithReason(format string, args ...interface{}) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Reason:  fmt.Sprintf(format, args...),
	}
}
