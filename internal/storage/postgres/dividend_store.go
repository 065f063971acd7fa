package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/storage"
)

// DividendStore implements storage.DividendStore using PostgreSQL.
type DividendStore struct {
	pool *Pool
}

// NewDividendStore creates a new DividendStore.
func NewDividendStore(pool *Pool) *DividendStore {
	return &DividendStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DividendStore = (*DividendStore)(nil)

const insertDividendQuery = `
	INSERT INTO dividends (ticker, ex_date_ms, amount_per_share)
	VALUES ($1, $2, $3)
`

// Insert adds a new dividend. Returns ErrDuplicateKey if (ticker, ex_date_ms) exists.
func (s *DividendStore) Insert(ctx context.Context, d *domain.Dividend) error {
	if d == nil || d.Ticker == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertDividendQuery, d.Ticker, d.ExDateMs, d.AmountPerShare)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert dividend: %w", err)
	}
	return nil
}

// InsertBulk adds multiple dividends atomically. Fails entire batch on any duplicate.
func (s *DividendStore) InsertBulk(ctx context.Context, dividends []*domain.Dividend) error {
	if len(dividends) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, d := range dividends {
		if d == nil || d.Ticker == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertDividendQuery, d.Ticker, d.ExDateMs, d.AmountPerShare)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert dividend in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByTickerRange retrieves dividends for a ticker with ex-dates within
// [start, end] (inclusive), ordered by ex-date ASC.
func (s *DividendStore) GetByTickerRange(ctx context.Context, ticker string, start, end int64) ([]*domain.Dividend, error) {
	if ticker == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ticker, ex_date_ms, amount_per_share
		FROM dividends
		WHERE ticker = $1 AND ex_date_ms >= $2 AND ex_date_ms <= $3
		ORDER BY ex_date_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("get dividends by ticker range: %w", err)
	}
	defer rows.Close()

	return scanDividends(rows)
}

// scanDividends scans multiple rows.
func scanDividends(rows pgx.Rows) ([]*domain.Dividend, error) {
	var dividends []*domain.Dividend

	for rows.Next() {
		var d domain.Dividend
		if err := rows.Scan(&d.Ticker, &d.ExDateMs, &d.AmountPerShare); err != nil {
			return nil, fmt.Errorf("scan dividend row: %w", err)
		}
		dividends = append(dividends, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dividend rows: %w", err)
	}

	return dividends, nil
}
