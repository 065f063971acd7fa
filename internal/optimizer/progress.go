package optimizer

import (
	"sync"
	"sync/atomic"
	"time"

	"rebalance-lab/internal/domain"
)

// progressTracker is the mutable state behind Progress snapshots. The
// completed counter is atomic so workers never contend on the mutex for
// the common path; status and the current combination key change rarely.
type progressTracker struct {
	configID string
	total    int
	startMs  int64

	completed atomic.Int64

	mu      sync.Mutex
	status  domain.OptimizationStatus
	current string
	errMsg  string
}

func newProgressTracker(configID string, total int) *progressTracker {
	return &progressTracker{
		configID: configID,
		total:    total,
		startMs:  time.Now().UnixMilli(),
		status:   domain.OptimizationRunning,
	}
}

func (t *progressTracker) setCurrent(key string) {
	t.mu.Lock()
	t.current = key
	t.mu.Unlock()
}

func (t *progressTracker) setStatus(status domain.OptimizationStatus, errMsg string) {
	t.mu.Lock()
	t.status = status
	t.errMsg = errMsg
	t.mu.Unlock()
}

// snapshot returns the externally visible progress. The ETA is a linear
// extrapolation of elapsed time over completed combinations; it reads 0
// until the first combination finishes.
func (t *progressTracker) snapshot() domain.Progress {
	completed := int(t.completed.Load())

	t.mu.Lock()
	status := t.status
	current := t.current
	errMsg := t.errMsg
	t.mu.Unlock()

	var etaMs int64
	if completed > 0 && completed < t.total && status == domain.OptimizationRunning {
		elapsed := time.Now().UnixMilli() - t.startMs
		etaMs = elapsed * int64(t.total-completed) / int64(completed)
	}

	return domain.Progress{
		ConfigID:           t.configID,
		Status:             status,
		Completed:          completed,
		Total:              t.total,
		CurrentCombination: current,
		ETAMs:              etaMs,
		Error:              errMsg,
	}
}
