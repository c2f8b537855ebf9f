// model/query.go
package model

// Supported aggregation names for a privacy query.
const (
	AggCount = "count"
	AggMean  = "mean"
	AggSum   = "sum"
	AggMin   = "min"
	AggMax   = "max"
)

// QueryRequest is the inbound body of a privacy query. Epsilon defaults to
// 1.0 and must lie in (0, 10]; Aggregations defaults to ["count"].
type QueryRequest struct {
	Category     string   `json:"category" binding:"required"`
	Purpose      string   `json:"purpose"`
	Epsilon      float64  `json:"epsilon"`
	Aggregations []string `json:"aggregations"`
}

// QueryResult is the noised response for a privacy query. Aggregations with
// no numeric input are null. RecordCount is itself noised; the true count is
// never disclosed.
type QueryResult struct {
	Results     map[string]*float64 `json:"results"`
	Epsilon     float64             `json:"epsilon"`
	Category    string              `json:"category"`
	Purpose     string              `json:"purpose"`
	Timestamp   string              `json:"timestamp"`
	RecordCount int64               `json:"recordCount"`
	NoData      bool                `json:"noData,omitempty"`
	Advisory    string              `json:"advisory,omitempty"`
}

// RateLimitDecision is the outcome of one fixed-window rate limit check.
// ResetTime is epoch milliseconds of the window end; RetryAfter is whole
// seconds until then, set only on denial.
type RateLimitDecision struct {
	Allowed    bool  `json:"allowed"`
	Limit      int   `json:"limit"`
	Remaining  int   `json:"remaining"`
	ResetTime  int64 `json:"reset_time"`
	RetryAfter int   `json:"retry_after,omitempty"`
}
