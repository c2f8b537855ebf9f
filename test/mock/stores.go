// test/mock/stores.go
package mock

import (
	"context"

	veil_errors "github.com/veildata/veil/errors"
	"github.com/veildata/veil/model"
)

// MockTokenStore serves token records from a map keyed by token id.
type MockTokenStore struct {
	Records map[string]*model.TokenRecord
	Err     error
}

func (s *MockTokenStore) GetToken(_ context.Context, tokenID string) (*model.TokenRecord, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	record, ok := s.Records[tokenID]
	if !ok {
		return nil, veil_errors.ErrTokenNotFound
	}
	return record, nil
}

// MockCategoryStore serves the category catalog from a map keyed by
// category key.
type MockCategoryStore struct {
	Categories map[string]*model.DataCategory
	Err        error
}

func (s *MockCategoryStore) GetCategory(_ context.Context, key string) (*model.DataCategory, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	category, ok := s.Categories[key]
	if !ok {
		return nil, veil_errors.ErrCategoryNotFound
	}
	return category, nil
}

// MockRecordStore serves raw records filtered by subject and category.
type MockRecordStore struct {
	Records []*model.RawRecord
	Err     error
}

func (s *MockRecordStore) GetRecords(_ context.Context, subjectID, categoryKey string) ([]*model.RawRecord, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*model.RawRecord
	for _, r := range s.Records {
		if r.SubjectID == subjectID && r.CategoryKey == categoryKey {
			out = append(out, r)
		}
	}
	return out, nil
}

// MockPolicyStore returns a fixed policy set for any fetch.
type MockPolicyStore struct {
	Policies []*model.ConsentPolicy
	Err      error
}

func (s *MockPolicyStore) FetchPolicies(_ context.Context, subjectID string, categories []string, purpose string) ([]*model.ConsentPolicy, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Policies, nil
}

// NoopCache misses every read and swallows every write.
type NoopCache struct{}

func (NoopCache) GetTokenRecord(context.Context, string) (*model.TokenRecord, error) {
	return nil, nil
}

func (NoopCache) SetTokenRecord(context.Context, model.TokenRecord) error { return nil }

func (NoopCache) GetCategory(context.Context, string) (*model.DataCategory, error) {
	return nil, nil
}

func (NoopCache) SetCategory(context.Context, model.DataCategory) error { return nil }
