package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PriceBar // keyed by (ticker, interval_minutes, timestamp_ms)
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]*domain.PriceBar),
	}
}

// barKey generates a unique key for a bar row.
func barKey(ticker string, intervalMinutes int, timestampMs int64) string {
	return fmt.Sprintf("%s|%d|%d", ticker, intervalMinutes, timestampMs)
}

// InsertBulk adds multiple bars. Fails entire batch on any duplicate key.
func (s *BarStore) InsertBulk(_ context.Context, intervalMinutes int, bars []*domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	if !domain.ValidIntervalMinutes(intervalMinutes) {
		return fmt.Errorf("%w: interval %d", storage.ErrInvalidInput, intervalMinutes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch).
	batchKeys := make(map[string]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Ticker == "" {
			return storage.ErrInvalidInput
		}
		key := barKey(b.Ticker, intervalMinutes, b.TimestampMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all.
	for _, b := range bars {
		barCopy := *b
		s.data[barKey(b.Ticker, intervalMinutes, b.TimestampMs)] = &barCopy
	}

	return nil
}

// GetByTickerRange retrieves bars within [start, end], ordered by timestamp ASC.
func (s *BarStore) GetByTickerRange(_ context.Context, ticker string, intervalMinutes int, start, end int64) ([]*domain.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceBar
	prefix := fmt.Sprintf("%s|%d|", ticker, intervalMinutes)
	for key, b := range s.data {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix &&
			b.TimestampMs >= start && b.TimestampMs <= end {
			barCopy := *b
			result = append(result, &barCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

var _ storage.BarStore = (*BarStore)(nil)
