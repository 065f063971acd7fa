package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/storage"
)

// DividendStore is an in-memory implementation of storage.DividendStore.
type DividendStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Dividend // keyed by (ticker, ex_date_ms)
}

// NewDividendStore creates a new in-memory dividend store.
func NewDividendStore() *DividendStore {
	return &DividendStore{
		data: make(map[string]*domain.Dividend),
	}
}

// dividendKey generates a unique key for a dividend row.
func dividendKey(ticker string, exDateMs int64) string {
	return fmt.Sprintf("%s|%d", ticker, exDateMs)
}

// Insert adds a new dividend. Returns ErrDuplicateKey if the key exists.
func (s *DividendStore) Insert(_ context.Context, d *domain.Dividend) error {
	if d == nil || d.Ticker == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := dividendKey(d.Ticker, d.ExDateMs)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	divCopy := *d
	s.data[key] = &divCopy
	return nil
}

// InsertBulk adds multiple dividends. Fails entire batch on any duplicate.
func (s *DividendStore) InsertBulk(_ context.Context, dividends []*domain.Dividend) error {
	if len(dividends) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(dividends))
	for _, d := range dividends {
		if d == nil || d.Ticker == "" {
			return storage.ErrInvalidInput
		}
		key := dividendKey(d.Ticker, d.ExDateMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, d := range dividends {
		divCopy := *d
		s.data[dividendKey(d.Ticker, d.ExDateMs)] = &divCopy
	}

	return nil
}

// GetByTickerRange retrieves dividends with ex-dates within [start, end],
// ordered by ex-date ASC.
func (s *DividendStore) GetByTickerRange(_ context.Context, ticker string, start, end int64) ([]*domain.Dividend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Dividend
	for _, d := range s.data {
		if d.Ticker == ticker && d.ExDateMs >= start && d.ExDateMs <= end {
			divCopy := *d
			result = append(result, &divCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ExDateMs < result[j].ExDateMs
	})

	return result, nil
}

var _ storage.DividendStore = (*DividendStore)(nil)
