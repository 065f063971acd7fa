// Package main ingests market data: streams live bars from a quote feed
// into the bar store, and bulk-loads dividend schedules from CSV files.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/marketdata"
	"rebalance-lab/internal/observability"
	"rebalance-lab/internal/storage"
	chstore "rebalance-lab/internal/storage/clickhouse"
	"rebalance-lab/internal/storage/migrations"
	pgstore "rebalance-lab/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	feedURL := flag.String("feed-url", os.Getenv("FEED_WS_URL"), "Quote feed WebSocket endpoint")
	ticker := flag.String("ticker", "", "Instrument symbol to subscribe")
	interval := flag.Int("interval", 5, "Bar interval in minutes")
	dividendsCSV := flag.String("dividends-csv", "", "CSV file of dividends to load (ticker,ex_date,amount)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	batchSize := flag.Int("batch-size", 500, "Bars per insert batch")
	flushInterval := flag.Duration("flush-interval", 5*time.Second, "Max time before a partial batch is flushed")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("component", "ingest").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("")

	// Dividend loading is a one-shot operation against Postgres.
	if *dividendsCSV != "" {
		if *postgresDSN == "" {
			logger.Fatal().Msg("--postgres-dsn is required with --dividends-csv")
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to postgres")
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("apply postgres migrations")
		}

		n, err := loadDividendsCSV(ctx, pgstore.NewDividendStore(pool), *dividendsCSV)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *dividendsCSV).Msg("load dividends")
		}
		metrics.DividendsIngested.Add(float64(n))
		logger.Info().Int("dividends", n).Msg("dividends loaded")
		if *feedURL == "" {
			return
		}
	}

	if *feedURL == "" || *ticker == "" {
		logger.Fatal().Msg("--feed-url and --ticker are required for streaming ingestion")
	}
	if *clickhouseDSN == "" {
		logger.Fatal().Msg("--clickhouse-dsn is required")
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to clickhouse")
	}
	defer chConn.Close()
	barStore := chstore.NewBarStore(chConn)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		logger.Info().Str("addr", *metricsAddr).Msg("metrics server listening")
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()

	client, err := marketdata.NewStreamClient(ctx, *feedURL, nil)
	if err != nil {
		logger.Fatal().Err(err).Str("url", *feedURL).Msg("connect to quote feed")
	}
	defer client.Close()

	bars, err := client.SubscribeBars(ctx, marketdata.BarFilter{
		Ticker:          *ticker,
		IntervalMinutes: *interval,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("ticker", *ticker).Msg("subscribe bars")
	}
	logger.Info().Str("ticker", *ticker).Int("interval", *interval).Msg("streaming bars")

	if err := runIngestLoop(ctx, logger, metrics, barStore, bars, *interval, *batchSize, *flushInterval); err != nil {
		logger.Fatal().Err(err).Msg("ingestion stopped")
	}
	logger.Info().Msg("shutdown complete")
}

// runIngestLoop batches incoming bars and flushes them on size or time.
// The final partial batch is flushed on shutdown.
func runIngestLoop(
	ctx context.Context,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	store storage.BarStore,
	bars <-chan domain.PriceBar,
	intervalMinutes, batchSize int,
	flushInterval time.Duration,
) error {
	batch := make([]*domain.PriceBar, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Flush must survive ctx cancellation to not lose the tail.
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := store.InsertBulk(flushCtx, intervalMinutes, batch)
		switch {
		case err == nil:
			metrics.BarsIngested.Add(float64(len(batch)))
			logger.Debug().Int("bars", len(batch)).Msg("batch flushed")
		case errors.Is(err, storage.ErrDuplicateKey):
			// Feed replayed bars we already hold; drop the batch.
			metrics.IngestionErrors.WithLabelValues("duplicate").Inc()
			logger.Warn().Int("bars", len(batch)).Msg("duplicate batch dropped")
		default:
			metrics.IngestionErrors.WithLabelValues("insert").Inc()
			logger.Error().Err(err).Int("bars", len(batch)).Msg("batch insert failed")
		}
		batch = batch[:0]
	}

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil
		case bar, ok := <-bars:
			if !ok {
				flush()
				return nil
			}
			b := bar
			batch = append(batch, &b)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// loadDividendsCSV bulk-inserts a dividend schedule. Rows are
// "ticker,ex_date,amount" with ex_date as YYYY-MM-DD; a header row is
// skipped when detected.
func loadDividendsCSV(ctx context.Context, store storage.DividendStore, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return 0, fmt.Errorf("read csv: %w", err)
	}

	var dividends []*domain.Dividend
	for i, rec := range records {
		if len(rec) != 3 {
			return 0, fmt.Errorf("row %d: expected 3 fields, got %d", i+1, len(rec))
		}
		if i == 0 && rec[0] == "ticker" {
			continue
		}

		exDate, err := time.Parse("2006-01-02", rec[1])
		if err != nil {
			return 0, fmt.Errorf("row %d: bad ex_date %q: %w", i+1, rec[1], err)
		}
		amount, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return 0, fmt.Errorf("row %d: bad amount %q: %w", i+1, rec[2], err)
		}

		dividends = append(dividends, &domain.Dividend{
			Ticker:         rec[0],
			ExDateMs:       exDate.UTC().UnixMilli(),
			AmountPerShare: amount,
		})
	}

	if err := store.InsertBulk(ctx, dividends); err != nil {
		return 0, fmt.Errorf("insert dividends: %w", err)
	}
	return len(dividends), nil
}
