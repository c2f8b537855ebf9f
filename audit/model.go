// audit/model.go
package audit

import (
	"time"
)

// AccessLog records one disclosure decision: who asked, on whose behalf,
// for what data and purpose, and over which network path.
type AccessLog struct {
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject"`
	Caller    string    `json:"caller"`
	Category  string    `json:"category"`
	Purpose   string    `json:"purpose"`
	TokenID   string    `json:"token_id"`
	Endpoint  string    `json:"endpoint"`
	Action    string    `json:"action"`
	ClientIP  string    `json:"client_ip"`
	UserAgent string    `json:"user_agent"`
}
