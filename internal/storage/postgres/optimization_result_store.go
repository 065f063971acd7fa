package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/storage"
)

// OptimizationResultStore implements storage.OptimizationResultStore using
// PostgreSQL. The combination and metric map are stored as JSONB payloads;
// result_id is the primary key, so re-running a sweep cannot double-insert.
type OptimizationResultStore struct {
	pool *Pool
}

// NewOptimizationResultStore creates a new OptimizationResultStore.
func NewOptimizationResultStore(pool *Pool) *OptimizationResultStore {
	return &OptimizationResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OptimizationResultStore = (*OptimizationResultStore)(nil)

const insertResultQuery = `
	INSERT INTO optimization_results (
		result_id, config_id, combination_index, combination, status, metrics, error
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// Insert adds a new result. Returns ErrDuplicateKey if result_id exists.
func (s *OptimizationResultStore) Insert(ctx context.Context, r *domain.OptimizationResult) error {
	if r == nil || r.ResultID == "" || r.ConfigID == "" {
		return storage.ErrInvalidInput
	}

	combination, metrics, err := encodeResultPayloads(r)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, insertResultQuery,
		r.ResultID,
		r.ConfigID,
		r.CombinationIndex,
		combination,
		string(r.Status),
		metrics,
		r.Error,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert optimization result: %w", err)
	}
	return nil
}

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *OptimizationResultStore) InsertBulk(ctx context.Context, results []*domain.OptimizationResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range results {
		if r == nil || r.ResultID == "" || r.ConfigID == "" {
			return storage.ErrInvalidInput
		}
		combination, metrics, err := encodeResultPayloads(r)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, insertResultQuery,
			r.ResultID,
			r.ConfigID,
			r.CombinationIndex,
			combination,
			string(r.Status),
			metrics,
			r.Error,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert optimization result in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByConfigID retrieves all results for a config, ordered by combination index ASC.
func (s *OptimizationResultStore) GetByConfigID(ctx context.Context, configID string) ([]*domain.OptimizationResult, error) {
	if configID == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT result_id, config_id, combination_index, combination, status, metrics, error
		FROM optimization_results
		WHERE config_id = $1
		ORDER BY combination_index ASC
	`

	rows, err := s.pool.Query(ctx, query, configID)
	if err != nil {
		return nil, fmt.Errorf("get optimization results by config id: %w", err)
	}
	defer rows.Close()

	return scanOptimizationResults(rows)
}

// CountByConfigID returns the number of stored results for a config.
func (s *OptimizationResultStore) CountByConfigID(ctx context.Context, configID string) (int, error) {
	if configID == "" {
		return 0, storage.ErrInvalidInput
	}

	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM optimization_results WHERE config_id = $1
	`, configID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count optimization results: %w", err)
	}
	return count, nil
}

func encodeResultPayloads(r *domain.OptimizationResult) (combination, metrics []byte, err error) {
	if combination, err = encodeCombination(r.Combination); err != nil {
		return nil, nil, fmt.Errorf("encode combination: %w", err)
	}
	if metrics, err = encodeMetrics(r.Metrics); err != nil {
		return nil, nil, fmt.Errorf("encode metrics: %w", err)
	}
	return combination, metrics, nil
}

// scanOptimizationResults scans multiple rows.
func scanOptimizationResults(rows pgx.Rows) ([]*domain.OptimizationResult, error) {
	var results []*domain.OptimizationResult

	for rows.Next() {
		var (
			r           domain.OptimizationResult
			status      string
			combination []byte
			metrics     []byte
		)

		err := rows.Scan(
			&r.ResultID,
			&r.ConfigID,
			&r.CombinationIndex,
			&combination,
			&status,
			&metrics,
			&r.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("scan optimization result row: %w", err)
		}

		r.Status = domain.ResultStatus(status)
		if r.Combination, err = decodeCombination(combination); err != nil {
			return nil, err
		}
		if r.Metrics, err = decodeMetrics(metrics); err != nil {
			return nil, err
		}
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate optimization result rows: %w", err)
	}

	return results, nil
}
