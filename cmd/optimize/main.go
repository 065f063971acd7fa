// Package main runs a parameter sweep defined in a YAML file, persists one
// result per combination, and renders a report for the finished run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"rebalance-lab/internal/config"
	"rebalance-lab/internal/marketdata"
	"rebalance-lab/internal/observability"
	"rebalance-lab/internal/optimizer"
	"rebalance-lab/internal/reporting"
	"rebalance-lab/internal/storage"
	chstore "rebalance-lab/internal/storage/clickhouse"
	"rebalance-lab/internal/storage/memory"
	"rebalance-lab/internal/storage/migrations"
	pgstore "rebalance-lab/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	sweepPath := flag.String("sweep", "", "Path to sweep YAML definition (required)")
	workers := flag.Int("workers", 4, "Concurrent simulation workers")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (results are not persisted)")
	outputDir := flag.String("output-dir", "output", "Directory for rendered reports")
	topN := flag.Int("top-n", 20, "Ranked rows in the report")
	heatmapX := flag.String("heatmap-x", "", "Heatmap X-axis parameter")
	heatmapY := flag.String("heatmap-y", "", "Heatmap Y-axis parameter")

	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("component", "optimize").Logger()

	if *sweepPath == "" {
		logger.Fatal().Msg("--sweep is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal().Msg("--postgres-dsn and --clickhouse-dsn are required (or --use-memory)")
	}

	cfg, err := config.LoadSweep(*sweepPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *sweepPath).Msg("load sweep definition")
	}
	logger.Info().
		Str("config_id", cfg.ID).
		Str("ticker", cfg.Ticker).
		Int("parameters", len(cfg.ParameterRanges)).
		Msg("sweep loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	orch := optimizer.New(optimizer.Options{
		ConfigStore: stores.configStore,
		ResultStore: stores.resultStore,
		Provider:    marketdata.NewStoreProvider(stores.barStore, stores.dividendStore),
		Workers:     *workers,
		Logger:      logger,
		Metrics:     observability.NewMetrics(""),
	})

	handle, err := orch.StartAsync(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("start sweep")
	}

	// Log progress until the sweep reaches a terminal status.
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

progress:
	for {
		select {
		case <-handle.Done():
			break progress
		case <-ticker.C:
			p := handle.Progress()
			logger.Info().
				Int("completed", p.Completed).
				Int("total", p.Total).
				Int64("eta_ms", p.ETAMs).
				Str("current", p.CurrentCombination).
				Msg("sweep progress")
		}
	}

	summary, err := handle.Wait()
	if err != nil {
		logger.Fatal().Err(err).Msg("sweep failed")
	}
	logger.Info().
		Str("status", string(summary.Status)).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("sweep finished")

	if err := renderReports(ctx, stores, cfg.ID, reporting.Options{
		TopN:     *topN,
		HeatmapX: *heatmapX,
		HeatmapY: *heatmapY,
	}, *outputDir); err != nil {
		logger.Fatal().Err(err).Msg("render reports")
	}
	logger.Info().Str("dir", *outputDir).Msg("reports written")
}

// allStores holds the storage implementations the sweep needs.
type allStores struct {
	configStore   storage.OptimizationConfigStore
	resultStore   storage.OptimizationResultStore
	barStore      storage.BarStore
	dividendStore storage.DividendStore
}

// createStores wires either the in-memory stores or Postgres + ClickHouse,
// applying migrations on the way in.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			configStore:   memory.NewOptimizationConfigStore(),
			resultStore:   memory.NewOptimizationResultStore(),
			barStore:      memory.NewBarStore(),
			dividendStore: memory.NewDividendStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	stores := &allStores{
		configStore:   pgstore.NewOptimizationConfigStore(pool),
		resultStore:   pgstore.NewOptimizationResultStore(pool),
		barStore:      chstore.NewBarStore(chConn),
		dividendStore: pgstore.NewDividendStore(pool),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// renderReports writes the Markdown and CSV reports for one finished run.
func renderReports(ctx context.Context, stores *allStores, configID string, opts reporting.Options, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	gen := reporting.NewGenerator(stores.configStore, stores.resultStore)
	report, err := gen.Generate(ctx, configID, opts)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	mdPath := filepath.Join(dir, fmt.Sprintf("report_%s.md", configID))
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}

	csvPath := filepath.Join(dir, fmt.Sprintf("results_%s.csv", configID))
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report)), 0644); err != nil {
		return fmt.Errorf("write csv report: %w", err)
	}

	return nil
}
