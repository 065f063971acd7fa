// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Optimization metrics
	OptimizationsFinished *prometheus.CounterVec
	CombinationsEvaluated *prometheus.CounterVec
	ActiveOptimizations   prometheus.Gauge
	OptimizationDuration  prometheus.Histogram
	CombinationDuration   prometheus.Histogram

	// Simulation metrics
	SimulationsRun prometheus.Counter
	TradesExecuted prometheus.Counter

	// Ingestion metrics
	BarsIngested      prometheus.Counter
	DividendsIngested prometheus.Counter
	IngestionErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "rebalance_lab"
	}

	return &Metrics{
		// Optimization metrics
		OptimizationsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "optimizations_finished_total",
			Help:      "Total number of optimization sweeps finished by terminal status",
		}, []string{"status"}),
		CombinationsEvaluated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "combinations_evaluated_total",
			Help:      "Total number of parameter combinations evaluated by result status",
		}, []string{"status"}),
		ActiveOptimizations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "active_optimizations",
			Help:      "Number of optimization sweeps currently running",
		}),
		OptimizationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "optimization_duration_seconds",
			Help:      "End-to-end duration of optimization sweeps",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
		CombinationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "combination_duration_seconds",
			Help:      "Duration of individual combination evaluations",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),

		// Simulation metrics
		SimulationsRun: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of simulation runs executed",
		}),
		TradesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_executed_total",
			Help:      "Total number of trades executed across simulation runs",
		}),

		// Ingestion metrics
		BarsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "bars_ingested_total",
			Help:      "Total number of price bars stored",
		}),
		DividendsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "dividends_ingested_total",
			Help:      "Total number of dividends stored",
		}),
		IngestionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by record type",
		}, []string{"record_type"}),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler returns the HTTP handler exposing the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
