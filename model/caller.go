// model/caller.go
package model

import "time"

// Caller is a registered API client identified by an opaque key.
type Caller struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
