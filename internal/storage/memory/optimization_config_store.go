package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/storage"
)

// OptimizationConfigStore is an in-memory implementation of
// storage.OptimizationConfigStore.
type OptimizationConfigStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OptimizationConfig // keyed by config ID
}

// NewOptimizationConfigStore creates a new in-memory config store.
func NewOptimizationConfigStore() *OptimizationConfigStore {
	return &OptimizationConfigStore{
		data: make(map[string]*domain.OptimizationConfig),
	}
}

// copyConfig clones a config deeply enough that callers cannot mutate
// stored state through shared maps.
func copyConfig(c *domain.OptimizationConfig) *domain.OptimizationConfig {
	configCopy := *c
	if c.ParameterRanges != nil {
		configCopy.ParameterRanges = make(map[string]domain.ParameterRange, len(c.ParameterRanges))
		for name, r := range c.ParameterRanges {
			configCopy.ParameterRanges[name] = r
		}
	}
	if c.Criteria.Weights != nil {
		configCopy.Criteria.Weights = make(map[string]float64, len(c.Criteria.Weights))
		for name, w := range c.Criteria.Weights {
			configCopy.Criteria.Weights[name] = w
		}
	}
	return &configCopy
}

// Insert adds a new config. Returns ErrDuplicateKey if the ID exists.
func (s *OptimizationConfigStore) Insert(_ context.Context, c *domain.OptimizationConfig) error {
	if c == nil || c.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[c.ID] = copyConfig(c)
	return nil
}

// GetByID retrieves a config by its ID. Returns ErrNotFound if not exists.
func (s *OptimizationConfigStore) GetByID(_ context.Context, configID string) (*domain.OptimizationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[configID]
	if !exists {
		return nil, fmt.Errorf("config %q: %w", configID, storage.ErrNotFound)
	}

	return copyConfig(c), nil
}

// UpdateStatus transitions a config to a new status.
func (s *OptimizationConfigStore) UpdateStatus(_ context.Context, configID string, status domain.OptimizationStatus, errMsg string) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: status %q", storage.ErrInvalidInput, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.data[configID]
	if !exists {
		return fmt.Errorf("config %q: %w", configID, storage.ErrNotFound)
	}

	c.Status = status
	if status == domain.OptimizationFailed {
		c.Error = errMsg
	}
	return nil
}

// List retrieves all configs, ordered by creation time ASC.
func (s *OptimizationConfigStore) List(_ context.Context) ([]*domain.OptimizationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.OptimizationConfig, 0, len(s.data))
	for _, c := range s.data {
		result = append(result, copyConfig(c))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAtMs != result[j].CreatedAtMs {
			return result[i].CreatedAtMs < result[j].CreatedAtMs
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

var _ storage.OptimizationConfigStore = (*OptimizationConfigStore)(nil)
