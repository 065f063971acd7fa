package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse. Bars live in a
// single price_bars MergeTree ordered by (ticker, interval_minutes,
// timestamp_ms). MergeTree does not enforce uniqueness, so duplicates are
// rejected with an explicit check before each batch insert.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on any duplicate
// (ticker, interval_minutes, timestamp_ms).
func (s *BarStore) InsertBulk(ctx context.Context, intervalMinutes int, bars []*domain.PriceBar) error {
	if intervalMinutes <= 0 {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		ticker      string
		timestampMs int64
	}
	seen := make(map[key]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Ticker == "" {
			return storage.ErrInvalidInput
		}
		k := key{b.Ticker, b.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows, one query per ticker
	byTicker := make(map[string][]int64)
	for _, b := range bars {
		byTicker[b.Ticker] = append(byTicker[b.Ticker], b.TimestampMs)
	}
	for ticker, timestamps := range byTicker {
		exists, err := s.anyExists(ctx, ticker, intervalMinutes, timestamps)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_bars (
			ticker, interval_minutes, timestamp_ms,
			open, high, low, close, volume, bid, ask, is_market_hours
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Ticker, uint32(intervalMinutes), uint64(b.TimestampMs),
			b.Open, b.High, b.Low, b.Close, b.Volume,
			b.Bid, b.Ask, b.IsMarketHours,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTickerRange retrieves bars for a ticker/interval within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *BarStore) GetByTickerRange(ctx context.Context, ticker string, intervalMinutes int, start, end int64) ([]*domain.PriceBar, error) {
	if ticker == "" || intervalMinutes <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ticker, timestamp_ms, open, high, low, close, volume, bid, ask, is_market_hours
		FROM price_bars
		WHERE ticker = ? AND interval_minutes = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, ticker, uint32(intervalMinutes), uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query bars by ticker range: %w", err)
	}
	defer rows.Close()

	return scanPriceBars(rows)
}

// anyExists checks if any of the given timestamps already exist for the series.
func (s *BarStore) anyExists(ctx context.Context, ticker string, intervalMinutes int, timestamps []int64) (bool, error) {
	ts := make([]uint64, len(timestamps))
	for i, t := range timestamps {
		ts[i] = uint64(t)
	}

	query := `
		SELECT count(*) FROM price_bars
		WHERE ticker = ? AND interval_minutes = ? AND timestamp_ms IN (?)
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, ticker, uint32(intervalMinutes), ts).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanPriceBars scans multiple rows.
func scanPriceBars(rows driver.Rows) ([]*domain.PriceBar, error) {
	var bars []*domain.PriceBar

	for rows.Next() {
		var b domain.PriceBar
		var timestampMs uint64

		err := rows.Scan(
			&b.Ticker, &timestampMs,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
			&b.Bid, &b.Ask, &b.IsMarketHours,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price bar row: %w", err)
		}

		b.TimestampMs = int64(timestampMs)
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price bar rows: %w", err)
	}

	return bars, nil
}
