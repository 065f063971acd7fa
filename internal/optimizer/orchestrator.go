// Package optimizer sweeps a parameter grid over the simulation engine,
// persisting one result per combination and exposing live progress.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/grid"
	"rebalance-lab/internal/idhash"
	"rebalance-lab/internal/marketdata"
	"rebalance-lab/internal/metrics"
	"rebalance-lab/internal/observability"
	"rebalance-lab/internal/simulation"
	"rebalance-lab/internal/storage"
)

// Orchestrator errors.
var (
	ErrBadConfig     = errors.New("invalid optimization config")
	ErrUnknownConfig = errors.New("unknown optimization config")
)

// defaultWorkers bounds the simulation worker pool when Options.Workers
// is unset.
const defaultWorkers = 4

// Options for creating an Orchestrator.
type Options struct {
	ConfigStore storage.OptimizationConfigStore
	ResultStore storage.OptimizationResultStore
	Provider    marketdata.Provider

	// Workers bounds the concurrent simulation pool. Defaults to 4.
	Workers int

	Logger zerolog.Logger

	// Metrics is optional; nil disables instrumentation.
	Metrics *observability.Metrics
}

// Orchestrator coordinates optimization sweeps.
// Flow per sweep: validate → expand grid → prefetch series once →
// evaluate combinations on a bounded worker pool → finalize status.
type Orchestrator struct {
	configStore storage.OptimizationConfigStore
	resultStore storage.OptimizationResultStore
	provider    marketdata.Provider
	workers     int
	log         zerolog.Logger
	metrics     *observability.Metrics

	handles   map[string]*Handle
	handlesMu sync.RWMutex
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Orchestrator{
		configStore: opts.ConfigStore,
		resultStore: opts.ResultStore,
		provider:    opts.Provider,
		workers:     workers,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		handles:     make(map[string]*Handle),
	}
}

// Summary is the final tally of a completed sweep.
type Summary struct {
	ConfigID  string
	Status    domain.OptimizationStatus
	Total     int
	Succeeded int
	Failed    int
}

// Handle tracks one in-flight sweep.
type Handle struct {
	configID string
	tracker  *progressTracker
	cancel   context.CancelFunc
	done     chan struct{}

	summary *Summary
	err     error
}

// Cancel requests cooperative cancellation. Combinations already running
// finish; no new ones start.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed when the sweep reaches a terminal status.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Progress returns a snapshot of the sweep's progress.
func (h *Handle) Progress() domain.Progress { return h.tracker.snapshot() }

// Wait blocks until the sweep finishes and returns its summary.
// The error is non-nil only for the fatal class: a failed prefetch.
func (h *Handle) Wait() (*Summary, error) {
	<-h.done
	return h.summary, h.err
}

// Run executes a sweep synchronously.
func (o *Orchestrator) Run(ctx context.Context, cfg *domain.OptimizationConfig) (*Summary, error) {
	h, err := o.StartAsync(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return h.Wait()
}

// StartAsync validates the config, registers it, and launches the sweep in
// the background. Validation and grid expansion fail fast, before any
// simulation runs.
func (o *Orchestrator) StartAsync(ctx context.Context, cfg *domain.OptimizationConfig) (*Handle, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	g, err := grid.New(cfg.ParameterRanges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadConfig, err)
	}

	total := g.Total()
	if cfg.MaxCombinations > 0 && total > cfg.MaxCombinations {
		return nil, fmt.Errorf("%w: grid has %d combinations, max is %d",
			ErrBadConfig, total, cfg.MaxCombinations)
	}

	if cfg.CreatedAtMs == 0 {
		cfg.CreatedAtMs = time.Now().UnixMilli()
	}
	cfg.Status = domain.OptimizationPending
	if err := o.configStore.Insert(ctx, cfg); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return nil, fmt.Errorf("persist config: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		configID: cfg.ID,
		tracker:  newProgressTracker(cfg.ID, total),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	o.handlesMu.Lock()
	o.handles[cfg.ID] = h
	o.handlesMu.Unlock()

	go o.runSweep(runCtx, cfg, g, h)

	return h, nil
}

// GetProgress returns the progress of a registered sweep.
func (o *Orchestrator) GetProgress(configID string) (domain.Progress, error) {
	o.handlesMu.RLock()
	h, ok := o.handles[configID]
	o.handlesMu.RUnlock()

	if !ok {
		return domain.Progress{}, fmt.Errorf("%w: %s", ErrUnknownConfig, configID)
	}
	return h.Progress(), nil
}

// Cancel requests cancellation of a registered sweep by config ID.
func (o *Orchestrator) Cancel(configID string) error {
	o.handlesMu.RLock()
	h, ok := o.handles[configID]
	o.handlesMu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConfig, configID)
	}
	h.Cancel()
	return nil
}

// runSweep is the sweep body. The series prefetch happens exactly once;
// every worker evaluates against the same immutable slice.
func (o *Orchestrator) runSweep(ctx context.Context, cfg *domain.OptimizationConfig, g *grid.Grid, h *Handle) {
	defer close(h.done)
	defer h.cancel()

	total := h.tracker.total
	startedAt := time.Now()

	if o.metrics != nil {
		o.metrics.ActiveOptimizations.Inc()
		defer o.metrics.ActiveOptimizations.Dec()
		defer func() {
			o.metrics.OptimizationDuration.Observe(time.Since(startedAt).Seconds())
			if h.summary != nil {
				o.metrics.OptimizationsFinished.WithLabelValues(string(h.summary.Status)).Inc()
			}
		}()
	}

	o.setStatus(cfg.ID, domain.OptimizationRunning, "")
	o.log.Info().
		Str("config_id", cfg.ID).
		Str("ticker", cfg.Ticker).
		Int("combinations", total).
		Int("workers", o.workers).
		Msg("optimization started")

	// Single prefetch. A failure here is the one fatal error class: without
	// data no combination can run, so the whole config fails.
	series, err := marketdata.LoadSeries(ctx, o.provider, cfg.Ticker, cfg.IntervalMinutes, cfg.StartMs, cfg.EndMs)
	if err != nil {
		err = fmt.Errorf("prefetch series: %w", err)
		o.setStatus(cfg.ID, domain.OptimizationFailed, err.Error())
		h.tracker.setStatus(domain.OptimizationFailed, err.Error())
		h.summary = &Summary{ConfigID: cfg.ID, Status: domain.OptimizationFailed, Total: total}
		h.err = err
		o.log.Error().Str("config_id", cfg.ID).Err(err).Msg("optimization failed")
		return
	}

	base := cfg.Base
	base.IncludeAfterHours = cfg.IncludeAfterHours

	var succeeded, failed atomic.Int64

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				evalStart := time.Now()
				result := o.evaluate(g, series, cfg, base, index)
				if o.metrics != nil {
					o.metrics.CombinationDuration.Observe(time.Since(evalStart).Seconds())
					o.metrics.CombinationsEvaluated.WithLabelValues(string(result.Status)).Inc()
				}
				if result.Status == domain.ResultSuccess {
					succeeded.Add(1)
				} else {
					failed.Add(1)
				}

				// Persist on a fresh context: the combination in flight at
				// cancellation keeps its computed result.
				if err := o.resultStore.Insert(context.Background(), result); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
					o.log.Warn().
						Str("config_id", cfg.ID).
						Int("index", index).
						Err(err).
						Msg("persist result failed")
				}

				h.tracker.completed.Add(1)
			}
		}()
	}

	// Dispatch with cooperative cancellation: no new combination starts
	// after the context is cancelled.
dispatch:
	for i := 0; i < total; i++ {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	status := domain.OptimizationCompleted
	if ctx.Err() != nil {
		status = domain.OptimizationCancelled
	}
	o.setStatus(cfg.ID, status, "")
	h.tracker.setStatus(status, "")

	h.summary = &Summary{
		ConfigID:  cfg.ID,
		Status:    status,
		Total:     total,
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}

	o.log.Info().
		Str("config_id", cfg.ID).
		Str("status", string(status)).
		Int("succeeded", h.summary.Succeeded).
		Int("failed", h.summary.Failed).
		Msg("optimization finished")
}

// evaluate runs one combination end to end. Any failure, including a
// panic inside the simulation, is captured as a FAILED result for this
// combination only.
func (o *Orchestrator) evaluate(g *grid.Grid, series *marketdata.Series, cfg *domain.OptimizationConfig, base domain.EffectiveConfig, index int) (result *domain.OptimizationResult) {
	result = &domain.OptimizationResult{
		ConfigID:         cfg.ID,
		CombinationIndex: index,
		Status:           domain.ResultFailed,
	}

	defer func() {
		if r := recover(); r != nil {
			result.Status = domain.ResultFailed
			result.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	combo, err := g.At(index)
	if err != nil {
		result.ResultID = idhash.ComputeResultID(cfg.ID, index, "")
		result.Error = err.Error()
		return result
	}
	result.Combination = combo
	result.ResultID = idhash.ComputeResultID(cfg.ID, index, combo.Key())

	o.handleCurrent(cfg.ID, combo.Key())

	effective, err := applyCombination(base, combo)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	simResult, err := simulation.Run(&simulation.Input{
		Ticker:          cfg.Ticker,
		Bars:            series.Bars,
		Dividends:       series.Dividends,
		InitialCash:     cfg.InitialCash,
		Config:          &effective,
		IntervalMinutes: cfg.IntervalMinutes,
		Lightweight:     true,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Metrics = metrics.Compute(simResult)
	result.Status = domain.ResultSuccess
	return result
}

// handleCurrent records the combination a worker just picked up.
func (o *Orchestrator) handleCurrent(configID, key string) {
	o.handlesMu.RLock()
	h, ok := o.handles[configID]
	o.handlesMu.RUnlock()
	if ok {
		h.tracker.setCurrent(key)
	}
}

// setStatus persists a status transition, logging rather than failing the
// sweep when the store write does not land.
func (o *Orchestrator) setStatus(configID string, status domain.OptimizationStatus, errMsg string) {
	if err := o.configStore.UpdateStatus(context.Background(), configID, status, errMsg); err != nil {
		o.log.Warn().
			Str("config_id", configID).
			Str("status", string(status)).
			Err(err).
			Msg("persist status failed")
	}
}

// validateConfig checks the sweep-level invariants that must hold before
// any grid expansion or data load.
func validateConfig(cfg *domain.OptimizationConfig) error {
	if cfg == nil || cfg.ID == "" {
		return fmt.Errorf("%w: missing config ID", ErrBadConfig)
	}
	if cfg.Ticker == "" {
		return fmt.Errorf("%w: missing ticker", ErrBadConfig)
	}
	if cfg.StartMs >= cfg.EndMs {
		return fmt.Errorf("%w: start %d not before end %d", ErrBadConfig, cfg.StartMs, cfg.EndMs)
	}
	if cfg.InitialCash <= 0 {
		return fmt.Errorf("%w: initial cash %v", ErrBadConfig, cfg.InitialCash)
	}
	if !domain.ValidIntervalMinutes(cfg.IntervalMinutes) {
		return fmt.Errorf("%w: interval %d minutes", ErrBadConfig, cfg.IntervalMinutes)
	}
	if m := cfg.Criteria.PrimaryMetric; m != "" && !knownMetric(m) {
		return fmt.Errorf("%w: unknown primary metric %q", ErrBadConfig, m)
	}
	return nil
}

func knownMetric(name string) bool {
	for _, m := range metrics.KnownMetrics {
		if m == name {
			return true
		}
	}
	return false
}
