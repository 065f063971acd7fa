// Package main renders the Markdown or CSV report for a stored
// optimization run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"rebalance-lab/internal/reporting"
	"rebalance-lab/internal/storage/migrations"
	pgstore "rebalance-lab/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	configID := flag.String("config-id", "", "Optimization config ID (required)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	format := flag.String("format", "markdown", "Output format: markdown or csv")
	output := flag.String("output", "", "Output file (default stdout)")
	topN := flag.Int("top-n", 20, "Ranked rows in the report")
	heatmapX := flag.String("heatmap-x", "", "Heatmap X-axis parameter")
	heatmapY := flag.String("heatmap-y", "", "Heatmap Y-axis parameter")

	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("component", "report").Logger()

	if *configID == "" {
		logger.Fatal().Msg("--config-id is required")
	}
	if *postgresDSN == "" {
		logger.Fatal().Msg("--postgres-dsn is required")
	}
	if *format != "markdown" && *format != "csv" {
		logger.Fatal().Str("format", *format).Msg("format must be markdown or csv")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("apply postgres migrations")
	}

	gen := reporting.NewGenerator(
		pgstore.NewOptimizationConfigStore(pool),
		pgstore.NewOptimizationResultStore(pool),
	)

	report, err := gen.Generate(ctx, *configID, reporting.Options{
		TopN:     *topN,
		HeatmapX: *heatmapX,
		HeatmapY: *heatmapY,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("config_id", *configID).Msg("generate report")
	}

	var rendered string
	if *format == "csv" {
		rendered = reporting.RenderCSV(report)
	} else {
		rendered = reporting.RenderMarkdown(report)
	}

	if *output == "" {
		fmt.Print(rendered)
		return
	}
	if err := os.WriteFile(*output, []byte(rendered), 0644); err != nil {
		logger.Fatal().Err(err).Str("path", *output).Msg("write report")
	}
	logger.Info().Str("path", *output).Msg("report written")
}
