package memory

import (
	"context"
	"sort"
	"sync"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/storage"
)

// OptimizationResultStore is an in-memory implementation of
// storage.OptimizationResultStore.
type OptimizationResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OptimizationResult // keyed by result ID
}

// NewOptimizationResultStore creates a new in-memory result store.
func NewOptimizationResultStore() *OptimizationResultStore {
	return &OptimizationResultStore{
		data: make(map[string]*domain.OptimizationResult),
	}
}

// copyResult clones a result including its metrics map.
func copyResult(r *domain.OptimizationResult) *domain.OptimizationResult {
	resultCopy := *r
	if r.Metrics != nil {
		resultCopy.Metrics = make(map[string]*float64, len(r.Metrics))
		for name, v := range r.Metrics {
			if v == nil {
				resultCopy.Metrics[name] = nil
				continue
			}
			vCopy := *v
			resultCopy.Metrics[name] = &vCopy
		}
	}
	return &resultCopy
}

// Insert adds a new result. Returns ErrDuplicateKey if result_id exists.
func (s *OptimizationResultStore) Insert(_ context.Context, r *domain.OptimizationResult) error {
	if r == nil || r.ResultID == "" || r.ConfigID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ResultID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.ResultID] = copyResult(r)
	return nil
}

// InsertBulk adds multiple results. Fails entire batch on any duplicate.
func (s *OptimizationResultStore) InsertBulk(_ context.Context, results []*domain.OptimizationResult) error {
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r == nil || r.ResultID == "" || r.ConfigID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[r.ResultID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.ResultID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.ResultID] = struct{}{}
	}

	for _, r := range results {
		s.data[r.ResultID] = copyResult(r)
	}

	return nil
}

// GetByConfigID retrieves all results for a config, ordered by
// combination index ASC.
func (s *OptimizationResultStore) GetByConfigID(_ context.Context, configID string) ([]*domain.OptimizationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OptimizationResult
	for _, r := range s.data {
		if r.ConfigID == configID {
			result = append(result, copyResult(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CombinationIndex < result[j].CombinationIndex
	})

	return result, nil
}

// CountByConfigID returns the number of stored results for a config.
func (s *OptimizationResultStore) CountByConfigID(_ context.Context, configID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.data {
		if r.ConfigID == configID {
			count++
		}
	}
	return count, nil
}

var _ storage.OptimizationResultStore = (*OptimizationResultStore)(nil)
