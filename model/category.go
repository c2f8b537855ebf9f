// model/category.go
package model

import "time"

// DataCategory is an immutable catalog entry. Policies and raw records
// reference it by key; a category is never deleted while referenced.
type DataCategory struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// RawRecord is one stored sample for a subject and category. Only the
// numeric fields of Payload feed the aggregations; everything else is
// ignored for that purpose.
type RawRecord struct {
	ID          string                 `json:"id"`
	SubjectID   string                 `json:"subject_id"`
	CategoryKey string                 `json:"category_key"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
}
