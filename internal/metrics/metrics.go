// Package metrics exposes Prometheus instruments for catalog refreshes and
// update checks. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

const namespace = "appstore"

// Metrics holds the registered instruments.
type Metrics struct {
	gatherer        prometheus.Gatherer
	refreshesTotal  *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	catalogEntries  *prometheus.GaugeVec
	checksTotal     *prometheus.CounterVec
	checkDuration   *prometheus.HistogramVec
}

// New registers the instruments on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the instruments on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		refreshesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_refreshes_total",
			Help:      "Catalog refreshes by kind and outcome",
		}, []string{"kind", "status"}),

		refreshDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_refresh_duration_seconds",
			Help:      "Duration of catalog refreshes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		catalogEntries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_entries",
			Help:      "Entries in the catalog cache after the last refresh",
		}, []string{"kind"}),

		checksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_checks_total",
			Help:      "Update check verdicts by kind and state",
		}, []string{"kind", "state"}),

		checkDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_check_duration_seconds",
			Help:      "Duration of single artifact update checks",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

// ObserveRefresh records one finished refresh.
func (m *Metrics) ObserveRefresh(kind models.Kind, count int, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.refreshesTotal.WithLabelValues(string(kind), status).Inc()
	m.refreshDuration.WithLabelValues(string(kind)).Observe(time.Since(started).Seconds())
	if err == nil {
		m.catalogEntries.WithLabelValues(string(kind)).Set(float64(count))
	}
}

// ObserveVerdict records one update check.
func (m *Metrics) ObserveVerdict(v models.Verdict, started time.Time) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(string(v.Kind), string(v.State)).Inc()
	m.checkDuration.WithLabelValues(string(v.Kind)).Observe(time.Since(started).Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
