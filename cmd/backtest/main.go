// Package main runs one rebalancing simulation for a ticker and date range
// with explicit strategy parameters, printing metrics as text or JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/marketdata"
	"rebalance-lab/internal/metrics"
	"rebalance-lab/internal/simulation"
	chstore "rebalance-lab/internal/storage/clickhouse"
	"rebalance-lab/internal/storage/migrations"
	pgstore "rebalance-lab/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	ticker := flag.String("ticker", "", "Instrument symbol (required)")
	start := flag.String("start", "", "Start date, YYYY-MM-DD or RFC3339 (required)")
	end := flag.String("end", "", "End date, YYYY-MM-DD or RFC3339 (required)")
	interval := flag.Int("interval", 5, "Bar interval in minutes")
	cash := flag.Float64("cash", 100_000, "Initial cash")

	triggerUp := flag.Float64("trigger-up", 0.03, "Sell trigger deviation (fraction)")
	triggerDown := flag.Float64("trigger-down", -0.03, "Buy trigger deviation (fraction)")
	minStock := flag.Float64("min-stock", 10, "Lower allocation guardrail (percent)")
	maxStock := flag.Float64("max-stock", 90, "Upper allocation guardrail (percent)")
	maxTrade := flag.Float64("max-trade", 25, "Max trade notional (percent of total value)")
	commission := flag.Float64("commission", 0.001, "Commission rate (fraction of notional)")
	minNotional := flag.Float64("min-notional", 100, "Minimum trade notional")
	afterHours := flag.Bool("after-hours", false, "Evaluate triggers outside regular trading hours")

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	jsonOut := flag.Bool("json", false, "Emit JSON instead of text")

	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("component", "backtest").Logger()

	if *ticker == "" || *start == "" || *end == "" {
		logger.Fatal().Msg("--ticker, --start and --end are required")
	}
	if *postgresDSN == "" || *clickhouseDSN == "" {
		logger.Fatal().Msg("--postgres-dsn and --clickhouse-dsn are required")
	}

	startMs, err := parseDateMs(*start, false)
	if err != nil {
		logger.Fatal().Err(err).Str("value", *start).Msg("bad --start")
	}
	endMs, err := parseDateMs(*end, true)
	if err != nil {
		logger.Fatal().Err(err).Str("value", *end).Msg("bad --end")
	}

	cfg := &domain.EffectiveConfig{
		TriggerUpPct:          *triggerUp,
		TriggerDownPct:        *triggerDown,
		MinStockPct:           *minStock,
		MaxStockPct:           *maxStock,
		MaxTradePctOfPosition: *maxTrade,
		CommissionRate:        *commission,
		MinNotional:           *minNotional,
		IncludeAfterHours:     *afterHours,
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid strategy config")
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

	chConn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to clickhouse")
	}
	defer chConn.Close()

	provider := marketdata.NewStoreProvider(chstore.NewBarStore(chConn), pgstore.NewDividendStore(pool))

	series, err := marketdata.LoadSeries(ctx, provider, *ticker, *interval, startMs, endMs)
	if err != nil {
		logger.Fatal().Err(err).Msg("load price series")
	}
	logger.Info().
		Int("bars", len(series.Bars)).
		Int("dividends", len(series.Dividends)).
		Msg("series loaded")

	result, err := simulation.Run(&simulation.Input{
		Ticker:          *ticker,
		Bars:            series.Bars,
		Dividends:       series.Dividends,
		InitialCash:     *cash,
		Config:          cfg,
		IntervalMinutes: *interval,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("simulation failed")
	}

	computed := metrics.Compute(result)

	if *jsonOut {
		printJSON(result, computed, startMs, endMs)
	} else {
		printText(result, computed)
	}
}

// backtestOutput is the JSON shape of a single run.
type backtestOutput struct {
	Ticker          string              `json:"ticker"`
	StartMs         int64               `json:"start_ms"`
	EndMs           int64               `json:"end_ms"`
	InitialCash     float64             `json:"initial_cash"`
	FinalTotalValue float64             `json:"final_total_value"`
	AlgorithmPnL    float64             `json:"algorithm_pnl"`
	Trades          int                 `json:"trades"`
	Dividends       float64             `json:"dividends_received"`
	Commissions     float64             `json:"total_commissions"`
	Metrics         map[string]*float64 `json:"metrics"`
}

func printJSON(result *domain.SimulationResult, computed map[string]*float64, startMs, endMs int64) {
	out := backtestOutput{
		Ticker:          result.Ticker,
		StartMs:         startMs,
		EndMs:           endMs,
		InitialCash:     result.InitialCash,
		FinalTotalValue: result.FinalTotalValue,
		AlgorithmPnL:    result.AlgorithmPnL,
		Trades:          result.TradeCount(),
		Dividends:       result.DividendsReceived,
		Commissions:     result.TotalCommissions,
		Metrics:         computed,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func printText(result *domain.SimulationResult, computed map[string]*float64) {
	fmt.Printf("Ticker:            %s\n", result.Ticker)
	fmt.Printf("Initial cash:      %.2f\n", result.InitialCash)
	fmt.Printf("Final total value: %.2f\n", result.FinalTotalValue)
	fmt.Printf("Algorithm PnL:     %.2f\n", result.AlgorithmPnL)
	fmt.Printf("Trades:            %d\n", result.TradeCount())
	fmt.Printf("Dividends:         %.2f\n", result.DividendsReceived)
	fmt.Printf("Commissions:       %.2f\n", result.TotalCommissions)
	fmt.Println()

	names := make([]string, 0, len(computed))
	for name := range computed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := computed[name]; v != nil {
			fmt.Printf("%-20s %.6f\n", name, *v)
		} else {
			fmt.Printf("%-20s n/a\n", name)
		}
	}
}

// parseDateMs accepts a bare date or an RFC3339 timestamp. A bare end date
// resolves to the last millisecond of that UTC day so ranges stay inclusive.
func parseDateMs(s string, endOfDay bool) (int64, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, fmt.Errorf("date must be YYYY-MM-DD or RFC3339: %q", s)
	}
	t = t.UTC()
	if endOfDay {
		return t.Add(24*time.Hour).UnixMilli() - 1, nil
	}
	return t.UnixMilli(), nil
}
