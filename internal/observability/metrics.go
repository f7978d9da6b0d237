package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ledger          *LedgerMetrics
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	registry.MustRegister(requests, duration)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		ledger:          NewLedgerMetrics(registry),
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Ledger returns the reconciliation collectors registered on this registry.
func (m *Metrics) Ledger() *LedgerMetrics {
	if m == nil {
		return nil
	}
	return m.ledger
}

// LedgerMetrics records refresh cycle health. It implements reconcile.Recorder.
type LedgerMetrics struct {
	fetches  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	warnings *prometheus.CounterVec
	stale    prometheus.Counter
}

var _ reconcile.Recorder = (*LedgerMetrics)(nil)

// NewLedgerMetrics registers the reconciliation collectors. A nil registerer
// selects the default Prometheus registerer.
func NewLedgerMetrics(registerer prometheus.Registerer) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_source_fetch_total",
		Help: "Source queries per refresh cycle partitioned by source and outcome.",
	}, []string{"source", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_source_fetch_duration_seconds",
		Help:    "Duration of source queries including timeouts.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	warnings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_reconcile_warnings_total",
		Help: "Warnings attached to reconciliation results by code.",
	}, []string{"code"})
	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_refresh_stale_total",
		Help: "Refresh results discarded because a newer request superseded them.",
	})
	registerer.MustRegister(fetches, duration, warnings, stale)
	return &LedgerMetrics{fetches: fetches, duration: duration, warnings: warnings, stale: stale}
}

func (l *LedgerMetrics) ObserveFetch(source reconcile.SourceType, failed bool, elapsed time.Duration) {
	if l == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	l.fetches.WithLabelValues(string(source), outcome).Inc()
	l.duration.WithLabelValues(string(source)).Observe(elapsed.Seconds())
}

func (l *LedgerMetrics) CountWarning(code reconcile.WarningCode) {
	if l == nil {
		return
	}
	l.warnings.WithLabelValues(string(code)).Inc()
}

func (l *LedgerMetrics) CountStale() {
	if l == nil {
		return
	}
	l.stale.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
