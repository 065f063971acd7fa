package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/storage"
)

// OptimizationConfigStore implements storage.OptimizationConfigStore using PostgreSQL.
// Parameter ranges, ranking criteria and the base strategy config are stored
// as JSONB payloads.
type OptimizationConfigStore struct {
	pool *Pool
}

// NewOptimizationConfigStore creates a new OptimizationConfigStore.
func NewOptimizationConfigStore(pool *Pool) *OptimizationConfigStore {
	return &OptimizationConfigStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OptimizationConfigStore = (*OptimizationConfigStore)(nil)

// Insert adds a new config. Returns ErrDuplicateKey if the ID exists.
func (s *OptimizationConfigStore) Insert(ctx context.Context, c *domain.OptimizationConfig) error {
	if c == nil || c.ID == "" {
		return storage.ErrInvalidInput
	}

	ranges, err := encodeRanges(c.ParameterRanges)
	if err != nil {
		return fmt.Errorf("encode parameter ranges: %w", err)
	}
	criteria, err := encodeCriteria(c.Criteria)
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	base, err := encodeBaseConfig(c.Base)
	if err != nil {
		return fmt.Errorf("encode base config: %w", err)
	}

	query := `
		INSERT INTO optimization_configs (
			id, ticker, start_ms, end_ms,
			parameter_ranges, criteria, base_config,
			max_combinations, initial_cash, interval_minutes, include_after_hours,
			status, error, created_at_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = s.pool.Exec(ctx, query,
		c.ID,
		c.Ticker,
		c.StartMs,
		c.EndMs,
		ranges,
		criteria,
		base,
		c.MaxCombinations,
		c.InitialCash,
		c.IntervalMinutes,
		c.IncludeAfterHours,
		string(c.Status),
		c.Error,
		c.CreatedAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert optimization config: %w", err)
	}
	return nil
}

// GetByID retrieves a config by its ID. Returns ErrNotFound if not exists.
func (s *OptimizationConfigStore) GetByID(ctx context.Context, configID string) (*domain.OptimizationConfig, error) {
	if configID == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT id, ticker, start_ms, end_ms,
		       parameter_ranges, criteria, base_config,
		       max_combinations, initial_cash, interval_minutes, include_after_hours,
		       status, error, created_at_ms
		FROM optimization_configs
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, configID)
	cfg, err := scanOptimizationConfig(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get optimization config by id: %w", err)
	}
	return cfg, nil
}

// UpdateStatus transitions a config to a new status. The error message is
// stored alongside FAILED transitions and ignored otherwise.
func (s *OptimizationConfigStore) UpdateStatus(ctx context.Context, configID string, status domain.OptimizationStatus, errMsg string) error {
	if configID == "" || !status.IsValid() {
		return storage.ErrInvalidInput
	}
	if status != domain.OptimizationFailed {
		errMsg = ""
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE optimization_configs
		SET status = $2, error = $3
		WHERE id = $1
	`, configID, string(status), errMsg)
	if err != nil {
		return fmt.Errorf("update optimization config status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves all configs, ordered by creation time ASC.
func (s *OptimizationConfigStore) List(ctx context.Context) ([]*domain.OptimizationConfig, error) {
	query := `
		SELECT id, ticker, start_ms, end_ms,
		       parameter_ranges, criteria, base_config,
		       max_combinations, initial_cash, interval_minutes, include_after_hours,
		       status, error, created_at_ms
		FROM optimization_configs
		ORDER BY created_at_ms ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list optimization configs: %w", err)
	}
	defer rows.Close()

	var configs []*domain.OptimizationConfig
	for rows.Next() {
		cfg, err := scanOptimizationConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan optimization config row: %w", err)
		}
		configs = append(configs, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate optimization config rows: %w", err)
	}

	return configs, nil
}

// scanOptimizationConfig scans one row into a config, decoding the JSONB
// payload columns.
func scanOptimizationConfig(row pgx.Row) (*domain.OptimizationConfig, error) {
	var (
		cfg      domain.OptimizationConfig
		status   string
		ranges   []byte
		criteria []byte
		base     []byte
	)

	err := row.Scan(
		&cfg.ID,
		&cfg.Ticker,
		&cfg.StartMs,
		&cfg.EndMs,
		&ranges,
		&criteria,
		&base,
		&cfg.MaxCombinations,
		&cfg.InitialCash,
		&cfg.IntervalMinutes,
		&cfg.IncludeAfterHours,
		&status,
		&cfg.Error,
		&cfg.CreatedAtMs,
	)
	if err != nil {
		return nil, err
	}

	cfg.Status = domain.OptimizationStatus(status)
	if cfg.ParameterRanges, err = decodeRanges(ranges); err != nil {
		return nil, err
	}
	if cfg.Criteria, err = decodeCriteria(criteria); err != nil {
		return nil, err
	}
	if cfg.Base, err = decodeBaseConfig(base); err != nil {
		return nil, err
	}

	return &cfg, nil
}
