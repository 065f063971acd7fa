package storage

import (
	"context"

	"rebalance-lab/internal/domain"
)

// BarStore provides access to price_bars storage. Bars are stored per
// (ticker, interval_minutes) series; a row is keyed by (ticker,
// interval_minutes, timestamp_ms).
type BarStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on any duplicate key.
	InsertBulk(ctx context.Context, intervalMinutes int, bars []*domain.PriceBar) error

	// GetByTickerRange retrieves bars for a ticker/interval within
	// [start, end] (inclusive), ordered by timestamp ASC.
	GetByTickerRange(ctx context.Context, ticker string, intervalMinutes int, start, end int64) ([]*domain.PriceBar, error)
}

// DividendStore provides access to dividends storage. A row is keyed by
// (ticker, ex_date_ms).
type DividendStore interface {
	// Insert adds a new dividend. Returns ErrDuplicateKey if the key exists.
	Insert(ctx context.Context, d *domain.Dividend) error

	// InsertBulk adds multiple dividends. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, dividends []*domain.Dividend) error

	// GetByTickerRange retrieves dividends for a ticker with ex-dates within
	// [start, end] (inclusive), ordered by ex-date ASC.
	GetByTickerRange(ctx context.Context, ticker string, start, end int64) ([]*domain.Dividend, error)
}

// OptimizationConfigStore provides access to optimization_configs storage.
type OptimizationConfigStore interface {
	// Insert adds a new config. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, c *domain.OptimizationConfig) error

	// GetByID retrieves a config by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, configID string) (*domain.OptimizationConfig, error)

	// UpdateStatus transitions a config to a new status. The error message is
	// stored alongside FAILED transitions and ignored otherwise.
	// Returns ErrNotFound if the config does not exist.
	UpdateStatus(ctx context.Context, configID string, status domain.OptimizationStatus, errMsg string) error

	// List retrieves all configs, ordered by creation time ASC.
	List(ctx context.Context) ([]*domain.OptimizationConfig, error)
}

// OptimizationResultStore provides access to optimization_results storage.
// A row is keyed by result_id, which is derived deterministically from
// (config_id, combination_index), so re-running a sweep cannot double-insert.
type OptimizationResultStore interface {
	// Insert adds a new result. Returns ErrDuplicateKey if result_id exists.
	Insert(ctx context.Context, r *domain.OptimizationResult) error

	// InsertBulk adds multiple results. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, results []*domain.OptimizationResult) error

	// GetByConfigID retrieves all results for a config, ordered by
	// combination index ASC.
	GetByConfigID(ctx context.Context, configID string) ([]*domain.OptimizationResult, error)

	// CountByConfigID returns the number of stored results for a config.
	CountByConfigID(ctx context.Context, configID string) (int, error)
}
