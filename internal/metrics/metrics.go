// Package metrics exposes Prometheus collectors for dashboard fetches,
// submissions and the bridge server.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/averix/internal/domain"
)

const namespace = "averix"

// Metrics holds every collector on its own registry so tests and multiple
// instances do not collide on the global one.
type Metrics struct {
	reg *prometheus.Registry

	fetchDuration   *prometheus.HistogramVec
	fetchTotal      *prometheus.CounterVec
	submitDuration  *prometheus.HistogramVec
	submitTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	wsClients       prometheus.Gauge
	exportsTotal    *prometheus.CounterVec
}

// New creates the collectors, including Go runtime and process metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		fetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of dashboard resource fetches",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"resource"}),
		fetchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Dashboard resource fetches by outcome",
		}, []string{"resource", "outcome"}),
		submitDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_duration_seconds",
			Help:      "Duration of order and stake submissions",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		submitTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submits_total",
			Help:      "Order and stake submissions by outcome",
		}, []string{"kind", "outcome"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of bridge server requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		wsClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected WebSocket clients",
		}),
		exportsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Snapshot exports by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveFetch records one dashboard fetch.
func (m *Metrics) ObserveFetch(resource string, elapsed time.Duration, err error) {
	m.fetchDuration.WithLabelValues(resource).Observe(elapsed.Seconds())
	m.fetchTotal.WithLabelValues(resource, outcome(err)).Inc()
}

// ObserveSubmit records one order or stake submission.
func (m *Metrics) ObserveSubmit(kind string, elapsed time.Duration, err error) {
	m.submitDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	m.submitTotal.WithLabelValues(kind, outcome(err)).Inc()
}

// ObserveRequest records one bridge server request.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// ObserveExport records one snapshot export.
func (m *Metrics) ObserveExport(err error) {
	m.exportsTotal.WithLabelValues(outcome(err)).Inc()
}

// SetWSClients sets the connected WebSocket client count.
func (m *Metrics) SetWSClients(n int) {
	m.wsClients.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// outcome maps err to a low-cardinality label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrNotAuthenticated):
		return "unauthorized"
	case errors.Is(err, domain.ErrSubmitInFlight):
		return "in_flight"
	default:
		return "error"
	}
}
