package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/marketdata"
	"rebalance-lab/internal/optimizer"
	"rebalance-lab/internal/storage/memory"
)

const hourMs = int64(3_600_000)

// newTestServer wires a server over in-memory stores seeded with an
// oscillating hourly series, so submitted sweeps complete quickly.
func newTestServer(t *testing.T) (*server, *allStores) {
	t.Helper()

	stores := &allStores{
		configStore:   memory.NewOptimizationConfigStore(),
		resultStore:   memory.NewOptimizationResultStore(),
		barStore:      memory.NewBarStore(),
		dividendStore: memory.NewDividendStore(),
	}

	bars := make([]*domain.PriceBar, 40)
	for i := range bars {
		price := 100.0
		if i%2 == 1 {
			price = 96.0
		}
		bars[i] = &domain.PriceBar{
			Ticker:        "AAPL",
			TimestampMs:   int64(i) * hourMs,
			Close:         price,
			IsMarketHours: true,
		}
	}
	require.NoError(t, stores.barStore.InsertBulk(context.Background(), domain.Interval1Hour, bars))

	orch := optimizer.New(optimizer.Options{
		ConfigStore: stores.configStore,
		ResultStore: stores.resultStore,
		Provider:    marketdata.NewStoreProvider(stores.barStore, stores.dividendStore),
		Workers:     4,
		Logger:      zerolog.Nop(),
	})

	srv := newServer(context.Background(), orch, stores.configStore, stores.resultStore, zerolog.Nop(), nil)
	return srv, stores
}

// sweepBody is a JSON sweep definition; the parser accepts it because JSON
// is a YAML subset. The series above starts at the epoch, so the date range
// covers all 40 bars.
const sweepBody = `{
	"id": "opt-api",
	"ticker": "AAPL",
	"start": "1970-01-01",
	"end": "1970-01-05",
	"interval_minutes": 60,
	"initial_cash": 100000,
	"parameters": {
		"trigger_up_pct": {"type": "float", "min": 0.01, "max": 0.04, "step": 0.01},
		"max_trade_pct_of_position": {"type": "float", "min": 10, "max": 50, "step": 10}
	},
	"criteria": {"primary_metric": "total_return"}
}`

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// waitCompleted polls the progress endpoint until the sweep reaches a
// terminal status.
func waitCompleted(t *testing.T, h http.Handler, id string) progressResponse {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec := doRequest(t, h, http.MethodGet, "/optimizations/"+id+"/progress", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var p progressResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
		if domain.OptimizationStatus(p.Status).IsTerminal() {
			return p
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("sweep never reached a terminal status")
	return progressResponse{}
}

func TestAPI_SweepLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	rec := doRequest(t, h, http.MethodPost, "/optimizations", sweepBody)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created createResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "opt-api", created.ConfigID)
	require.Equal(t, 20, created.Total)

	p := waitCompleted(t, h, "opt-api")
	require.Equal(t, string(domain.OptimizationCompleted), p.Status)
	require.Equal(t, 20, p.Completed)
	require.Equal(t, 20, p.Total)

	rec = doRequest(t, h, http.MethodGet, "/optimizations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []configSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "opt-api", list[0].ID)
	require.Equal(t, string(domain.OptimizationCompleted), list[0].Status)

	rec = doRequest(t, h, http.MethodGet, "/optimizations/opt-api/results", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results []resultRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 20)
	for i, r := range results {
		require.Equal(t, i, r.CombinationIndex)
		require.Equal(t, string(domain.ResultSuccess), r.Status)
		require.NotEmpty(t, r.CombinationKey)
		require.NotNil(t, r.Metrics["total_return"])
	}
}

func TestAPI_Heatmap(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	rec := doRequest(t, h, http.MethodPost, "/optimizations", sweepBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	waitCompleted(t, h, "opt-api")

	rec = doRequest(t, h, http.MethodGet,
		"/optimizations/opt-api/heatmap?x=trigger_up_pct&y=max_trade_pct_of_position", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var hm heatmapResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hm))
	// Metric defaults to the config's primary metric.
	require.Equal(t, "total_return", hm.Metric)
	require.Len(t, hm.XValues, 4)
	require.Len(t, hm.YValues, 5)
	require.Len(t, hm.Cells, 5)
	require.Equal(t, 20, hm.ValidCells)
	require.NotNil(t, hm.Stats)
	for _, row := range hm.Cells {
		require.Len(t, row, 4)
		for _, cell := range row {
			require.True(t, cell.Valid)
			require.NotNil(t, cell.Value)
		}
	}

	// Missing axes are a client error.
	rec = doRequest(t, h, http.MethodGet, "/optimizations/opt-api/heatmap", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_StoredProgressFallback(t *testing.T) {
	srv, stores := newTestServer(t)
	h := srv.routes()

	rec := doRequest(t, h, http.MethodPost, "/optimizations", sweepBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	waitCompleted(t, h, "opt-api")

	// A fresh server over the same stores has no live handle for the sweep;
	// progress must be reconstructed from persisted state.
	restarted := newServer(
		context.Background(),
		optimizer.New(optimizer.Options{
			ConfigStore: stores.configStore,
			ResultStore: stores.resultStore,
			Provider:    marketdata.NewStoreProvider(stores.barStore, stores.dividendStore),
			Logger:      zerolog.Nop(),
		}),
		stores.configStore, stores.resultStore, zerolog.Nop(), nil,
	)

	rec = doRequest(t, restarted.routes(), http.MethodGet, "/optimizations/opt-api/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var p progressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, string(domain.OptimizationCompleted), p.Status)
	require.Equal(t, 20, p.Completed)
	require.Equal(t, 20, p.Total)
}

func TestAPI_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	// Not a sweep definition at all.
	rec := doRequest(t, h, http.MethodPost, "/optimizations", `{"ticker": ""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Parses but fails optimizer validation.
	bad := strings.Replace(sweepBody, `"total_return"`, `"alpha_decay"`, 1)
	rec = doRequest(t, h, http.MethodPost, "/optimizations", bad)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_UnknownConfig(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	for _, path := range []string{
		"/optimizations/nope/progress",
		"/optimizations/nope/results",
		"/optimizations/nope/heatmap?x=a&y=b",
	} {
		rec := doRequest(t, h, http.MethodGet, path, "")
		require.Equalf(t, http.StatusNotFound, rec.Code, "GET %s", path)
	}

	rec := doRequest(t, h, http.MethodPost, "/optimizations/nope/cancel", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Cancel(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	rec := doRequest(t, h, http.MethodPost, "/optimizations", sweepBody)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/optimizations/opt-api/cancel", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	p := waitCompleted(t, h, "opt-api")
	// The sweep may have finished before the cancel landed; either terminal
	// status is acceptable, but it must terminate.
	require.Contains(t,
		[]string{string(domain.OptimizationCompleted), string(domain.OptimizationCancelled)},
		p.Status,
	)
}

func TestAPI_Healthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.routes(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
