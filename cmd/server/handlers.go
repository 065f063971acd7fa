package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"rebalance-lab/internal/config"
	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/grid"
	"rebalance-lab/internal/heatmap"
	"rebalance-lab/internal/observability"
	"rebalance-lab/internal/optimizer"
	"rebalance-lab/internal/storage"
)

// maxRequestBody caps sweep submissions at 1 MiB.
const maxRequestBody = 1 << 20

// server holds the HTTP API dependencies. Sweeps started through the API
// run on baseCtx so they survive the submitting request.
type server struct {
	baseCtx     context.Context
	orch        *optimizer.Orchestrator
	configStore storage.OptimizationConfigStore
	resultStore storage.OptimizationResultStore
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

func newServer(
	baseCtx context.Context,
	orch *optimizer.Orchestrator,
	configStore storage.OptimizationConfigStore,
	resultStore storage.OptimizationResultStore,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *server {
	return &server{
		baseCtx:     baseCtx,
		orch:        orch,
		configStore: configStore,
		resultStore: resultStore,
		logger:      logger,
		metrics:     metrics,
	}
}

// routes builds the chi router.
func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.Handler())

	r.Route("/optimizations", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/progress", s.handleProgress)
			r.Get("/results", s.handleResults)
			r.Get("/heatmap", s.handleHeatmap)
			r.Post("/cancel", s.handleCancel)
		})
	})

	return r
}

// instrument records request counts and latency per route pattern.
func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// createResponse acknowledges an accepted sweep.
type createResponse struct {
	ConfigID string `json:"config_id"`
	Total    int    `json:"total_combinations"`
	Status   string `json:"status"`
}

// handleCreate accepts a sweep definition (same schema as the YAML sweep
// files; JSON bodies parse as a YAML subset) and starts it asynchronously.
func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	cfg, err := config.ParseSweep(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	handle, err := s.orch.StartAsync(s.baseCtx, cfg)
	if err != nil {
		if errors.Is(err, optimizer.ErrBadConfig) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Str("config_id", cfg.ID).Msg("start sweep")
		s.writeError(w, http.StatusInternalServerError, "start sweep")
		return
	}

	s.writeJSON(w, http.StatusAccepted, createResponse{
		ConfigID: cfg.ID,
		Total:    handle.Progress().Total,
		Status:   string(handle.Progress().Status),
	})
}

// configSummary is one row of the list response.
type configSummary struct {
	ID              string `json:"id"`
	Ticker          string `json:"ticker"`
	StartMs         int64  `json:"start_ms"`
	EndMs           int64  `json:"end_ms"`
	IntervalMinutes int    `json:"interval_minutes"`
	Status          string `json:"status"`
	CreatedAtMs     int64  `json:"created_at_ms"`
	Error           string `json:"error,omitempty"`
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	configs, err := s.configStore.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list configs")
		s.writeError(w, http.StatusInternalServerError, "list configs")
		return
	}

	out := make([]configSummary, 0, len(configs))
	for _, c := range configs {
		out = append(out, configSummary{
			ID:              c.ID,
			Ticker:          c.Ticker,
			StartMs:         c.StartMs,
			EndMs:           c.EndMs,
			IntervalMinutes: c.IntervalMinutes,
			Status:          string(c.Status),
			CreatedAtMs:     c.CreatedAtMs,
			Error:           c.Error,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// progressResponse mirrors domain.Progress.
type progressResponse struct {
	ConfigID           string `json:"config_id"`
	Status             string `json:"status"`
	Completed          int    `json:"completed"`
	Total              int    `json:"total"`
	CurrentCombination string `json:"current_combination,omitempty"`
	ETAMs              int64  `json:"eta_ms,omitempty"`
	Error              string `json:"error,omitempty"`
}

// handleProgress reports live progress for in-flight sweeps and falls back
// to stored state for finished or restarted ones.
func (s *server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := s.orch.GetProgress(id)
	if err != nil {
		stored, err := s.storedProgress(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.writeError(w, http.StatusNotFound, "unknown optimization: "+id)
				return
			}
			s.logger.Error().Err(err).Str("config_id", id).Msg("load progress")
			s.writeError(w, http.StatusInternalServerError, "load progress")
			return
		}
		p = *stored
	}

	s.writeJSON(w, http.StatusOK, progressResponse{
		ConfigID:           p.ConfigID,
		Status:             string(p.Status),
		Completed:          p.Completed,
		Total:              p.Total,
		CurrentCombination: p.CurrentCombination,
		ETAMs:              p.ETAMs,
		Error:              p.Error,
	})
}

// storedProgress reconstructs progress from the stores when no live handle
// exists for the config.
func (s *server) storedProgress(ctx context.Context, id string) (*domain.Progress, error) {
	cfg, err := s.configStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	completed, err := s.resultStore.CountByConfigID(ctx, id)
	if err != nil {
		return nil, err
	}

	total := 0
	if g, err := grid.New(cfg.ParameterRanges); err == nil {
		total = g.Total()
	}

	return &domain.Progress{
		ConfigID:  cfg.ID,
		Status:    cfg.Status,
		Completed: completed,
		Total:     total,
		Error:     cfg.Error,
	}, nil
}

// resultRow is one combination's outcome in the results response.
type resultRow struct {
	ResultID         string              `json:"result_id"`
	CombinationIndex int                 `json:"combination_index"`
	CombinationKey   string              `json:"combination_key"`
	Status           string              `json:"status"`
	Metrics          map[string]*float64 `json:"metrics,omitempty"`
	Error            string              `json:"error,omitempty"`
}

func (s *server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.configStore.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "unknown optimization: "+id)
			return
		}
		s.logger.Error().Err(err).Str("config_id", id).Msg("load config")
		s.writeError(w, http.StatusInternalServerError, "load config")
		return
	}

	results, err := s.resultStore.GetByConfigID(r.Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Str("config_id", id).Msg("load results")
		s.writeError(w, http.StatusInternalServerError, "load results")
		return
	}

	out := make([]resultRow, 0, len(results))
	for _, res := range results {
		row := resultRow{
			ResultID:         res.ResultID,
			CombinationIndex: res.CombinationIndex,
			Status:           string(res.Status),
			Metrics:          res.Metrics,
			Error:            res.Error,
		}
		if res.Combination != nil {
			row.CombinationKey = res.Combination.Key()
		}
		out = append(out, row)
	}
	s.writeJSON(w, http.StatusOK, out)
}

// heatmapCell is one (x, y) cell of the heatmap response.
type heatmapCell struct {
	Value *float64 `json:"value"`
	Valid bool     `json:"valid"`
}

// heatmapResponse is a row-major heatmap projection: cells[y][x].
type heatmapResponse struct {
	ConfigID   string               `json:"config_id"`
	XParameter string               `json:"x_parameter"`
	YParameter string               `json:"y_parameter"`
	Metric     string               `json:"metric"`
	XValues    []string             `json:"x_values"`
	YValues    []string             `json:"y_values"`
	Cells      [][]heatmapCell      `json:"cells"`
	Stats      *domain.HeatmapStats `json:"stats,omitempty"`
	ValidCells int                  `json:"valid_cells"`
}

func (s *server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	x := r.URL.Query().Get("x")
	y := r.URL.Query().Get("y")
	metric := r.URL.Query().Get("metric")

	if x == "" || y == "" {
		s.writeError(w, http.StatusBadRequest, "x and y query parameters are required")
		return
	}

	cfg, err := s.configStore.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "unknown optimization: "+id)
			return
		}
		s.logger.Error().Err(err).Str("config_id", id).Msg("load config")
		s.writeError(w, http.StatusInternalServerError, "load config")
		return
	}
	if metric == "" {
		metric = cfg.Criteria.PrimaryMetric
	}

	results, err := s.resultStore.GetByConfigID(r.Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Str("config_id", id).Msg("load results")
		s.writeError(w, http.StatusInternalServerError, "load results")
		return
	}

	data, err := heatmap.Build(results, x, y, metric)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data.ConfigID = id

	resp := heatmapResponse{
		ConfigID:   data.ConfigID,
		XParameter: data.XParameter,
		YParameter: data.YParameter,
		Metric:     data.Metric,
		XValues:    make([]string, len(data.XValues)),
		YValues:    make([]string, len(data.YValues)),
		Cells:      make([][]heatmapCell, len(data.YValues)),
		Stats:      data.Stats,
		ValidCells: data.ValidCells,
	}
	for i, v := range data.XValues {
		resp.XValues[i] = v.String()
	}
	for i, v := range data.YValues {
		resp.YValues[i] = v.String()
	}
	for yi := range data.YValues {
		row := make([]heatmapCell, len(data.XValues))
		for xi := range data.XValues {
			cell := data.CellAt(xi, yi)
			row[xi] = heatmapCell{Value: cell.MetricValue, Valid: cell.IsValid}
		}
		resp.Cells[yi] = row
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleCancel requests cooperative cancellation of an in-flight sweep.
func (s *server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.orch.Cancel(id); err != nil {
		s.writeError(w, http.StatusNotFound, "no in-flight optimization: "+id)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"config_id": id, "status": "cancelling"})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encode response")
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
