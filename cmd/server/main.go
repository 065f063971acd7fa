// Package main serves the optimization HTTP API: submit sweeps, poll
// progress, fetch results and heatmaps, plus health and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"rebalance-lab/internal/marketdata"
	"rebalance-lab/internal/observability"
	"rebalance-lab/internal/optimizer"
	"rebalance-lab/internal/storage"
	chstore "rebalance-lab/internal/storage/clickhouse"
	"rebalance-lab/internal/storage/memory"
	"rebalance-lab/internal/storage/migrations"
	pgstore "rebalance-lab/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", ":8080", "HTTP listen address")
	workers := flag.Int("workers", 4, "Concurrent simulation workers per sweep")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")

	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("component", "server").Logger()

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal().Msg("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	metrics := observability.NewMetrics("")
	orch := optimizer.New(optimizer.Options{
		ConfigStore: stores.configStore,
		ResultStore: stores.resultStore,
		Provider:    marketdata.NewStoreProvider(stores.barStore, stores.dividendStore),
		Workers:     *workers,
		Logger:      logger,
		Metrics:     metrics,
	})

	srv := newServer(ctx, orch, stores.configStore, stores.resultStore, logger, metrics)

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: srv.routes(),
	}

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", *addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("http server")
	}
	logger.Info().Msg("shutdown complete")
}

// allStores holds the storage implementations the API needs.
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
