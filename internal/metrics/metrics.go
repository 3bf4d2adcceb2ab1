package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pebble/internal/domain"
)

// Metrics owns an independent registry so tests and multiple instances do
// not collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	syncRows    *prometheus.CounterVec
	nights      *prometheus.CounterVec
	runDuration prometheus.Histogram
	upstreamUp  prometheus.Gauge
	requests    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		syncRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pebble",
			Name:      "sync_rows_total",
			Help:      "Rows written by reconciliation, by table, target and operation.",
		}, []string{"table", "target", "op"}),
		nights: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pebble",
			Name:      "nights_computed_total",
			Help:      "Nights run through the computation chain, by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pebble",
			Name:      "run_duration_seconds",
			Help:      "Duration of a full ingest, compute and publish run.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		upstreamUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pebble",
			Name:      "upstream_up",
			Help:      "1 when the last event-log fetch succeeded.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pebble",
			Name:      "http_requests_total",
			Help:      "Report API requests by path.",
		}, []string{"path"}),
	}
	m.registry.MustRegister(m.syncRows, m.nights, m.runDuration, m.upstreamUp, m.requests)
	return m
}

// Record implements reconcile.Recorder.
func (m *Metrics) Record(_ context.Context, res domain.SyncResult) error {
	m.syncRows.WithLabelValues(res.Table, res.Target, "upsert").Add(float64(res.Upserted))
	m.syncRows.WithLabelValues(res.Table, res.Target, "delete").Add(float64(res.Deleted))
	return nil
}

func (m *Metrics) NightComputed(outcome string) {
	m.nights.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRun(d time.Duration) {
	m.runDuration.Observe(d.Seconds())
}

func (m *Metrics) SetUpstreamUp(up bool) {
	if up {
		m.upstreamUp.Set(1)
		return
	}
	m.upstreamUp.Set(0)
}

func (m *Metrics) Request(path string) {
	m.requests.WithLabelValues(path).Inc()
}

// Handler serves the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
