// util/validation_util.go

package util

import (
	"fmt"

	"github.com/veildata/veil/model"
)

type ValidationUtil struct{}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{}
}

func (v *ValidationUtil) ValidateConsentPolicy(policy model.ConsentPolicy) error {
	if policy.SubjectID == "" {
		return fmt.Errorf("consent policy subject cannot be empty")
	}
	if policy.CategoryKey == "" {
		return fmt.Errorf("consent policy category cannot be empty")
	}
	if policy.Purpose == "" {
		return fmt.Errorf("consent policy purpose cannot be empty")
	}
	switch policy.Status {
	case model.ConsentGranted, model.ConsentRestricted, model.ConsentRevoked:
	default:
		return fmt.Errorf("consent policy status must be GRANTED, RESTRICTED or REVOKED")
	}
	if policy.Status == model.ConsentGranted && len(policy.Scopes) == 0 {
		return fmt.Errorf("a granted consent policy must carry at least one scope")
	}
	// Add more validation rules as needed
	return nil
}

func (v *ValidationUtil) ValidateCategory(category model.DataCategory) error {
	if category.Key == "" {
		return fmt.Errorf("category key cannot be empty")
	}
	if category.DisplayName == "" {
		return fmt.Errorf("category display name cannot be empty")
	}
	return nil
}

func (v *ValidationUtil) ValidateRawRecord(record model.RawRecord) error {
	if record.SubjectID == "" {
		return fmt.Errorf("record subject cannot be empty")
	}
	if record.CategoryKey == "" {
		return fmt.Errorf("record category cannot be empty")
	}
	if len(record.Payload) == 0 {
		return fmt.Errorf("record payload cannot be empty")
	}
	return nil
}

func (v *ValidationUtil) ValidateQueryRequest(req model.QueryRequest, maxEpsilon float64) error {
	if req.Category == "" {
		return fmt.Errorf("query category cannot be empty")
	}
	if req.Epsilon <= 0 || req.Epsilon > maxEpsilon {
		return fmt.Errorf("epsilon must be in (0, %v], got %v", maxEpsilon, req.Epsilon)
	}
	valid := map[string]struct{}{
		model.AggCount: {}, model.AggMean: {}, model.AggSum: {}, model.AggMin: {}, model.AggMax: {},
	}
	seen := map[string]struct{}{}
	for _, agg := range req.Aggregations {
		if _, ok := valid[agg]; !ok {
			return fmt.Errorf("unknown aggregation %q", agg)
		}
		if _, dup := seen[agg]; dup {
			return fmt.Errorf("duplicate aggregation %q", agg)
		}
		seen[agg] = struct{}{}
	}
	return nil
}
