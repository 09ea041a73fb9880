package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the service.
type Metrics struct {
	AnalysesTotal    *prometheus.CounterVec // labels: outcome={ok,error}
	AnalysisDuration prometheus.Histogram

	UpstreamRequests *prometheus.CounterVec // labels: service={weather,geocode,llm}, outcome={ok,error}
	GeocodeCache     *prometheus.CounterVec // labels: result={hit,miss}
	LLMDuration      prometheus.Histogram

	ChatExchanges prometheus.Counter
	WatchRuns     prometheus.Counter

	StoreOperations *prometheus.CounterVec // labels: operation, outcome={ok,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "georisk",
			Name:      "analyses_total",
			Help:      "Completed analysis requests by outcome.",
		}, []string{"outcome"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "georisk",
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end duration of an analysis, including all upstream calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "georisk",
			Name:      "upstream_requests_total",
			Help:      "Upstream provider calls by service and outcome.",
		}, []string{"service", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "georisk",
			Name:      "geocode_cache_total",
			Help:      "Reverse-geocoding cache lookups by result.",
		}, []string{"result"}),
		LLMDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "georisk",
			Name:      "llm_request_duration_seconds",
			Help:      "Generative-AI request duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
		ChatExchanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "georisk",
			Name:      "chat_exchanges_total",
			Help:      "Completed chat exchanges (user message plus assistant reply).",
		}),
		WatchRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "georisk",
			Name:      "watch_runs_total",
			Help:      "Scheduled re-analysis runs over the watched locations.",
		}),
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "georisk",
			Name:      "store_operations_total",
			Help:      "Persistence operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}
}

// NewMetrics creates the service metrics and registers them with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.UpstreamRequests,
		m.GeocodeCache,
		m.LLMDuration,
		m.ChatExchanges,
		m.WatchRuns,
		m.StoreOperations,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// NewLogger builds a slog logger from the configured level and format.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
