package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayltai/espartan/internal/cache"
)

type Metrics struct {
	gatherer      prometheus.Gatherer
	fetchesTotal  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	staleTotal    *prometheus.CounterVec
	entries       prometheus.Gauge
}

// New registers the collectors on reg. Passing prometheus.NewRegistry()
// keeps tests independent of the global registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		fetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "espartan_cache_fetches_total",
			Help: "Gateway fetches issued by the polling cache, by resource and outcome.",
		}, []string{"resource", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "espartan_cache_fetch_duration_seconds",
			Help:    "Duration of gateway fetches including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource"}),
		staleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "espartan_cache_stale_responses_total",
			Help: "Responses discarded because a newer one had already been applied.",
		}, []string{"resource"}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "espartan_cache_entries",
			Help: "Cache entries with at least one subscriber.",
		}),
	}

	reg.MustRegister(
		m.fetchesTotal,
		m.fetchDuration,
		m.staleTotal,
		m.entries,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) FetchCompleted(key cache.Key, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.fetchesTotal.WithLabelValues(key.Name(), outcome).Inc()
	m.fetchDuration.WithLabelValues(key.Name()).Observe(took.Seconds())
}

func (m *Metrics) StaleDiscarded(key cache.Key) {
	if m == nil {
		return
	}
	m.staleTotal.WithLabelValues(key.Name()).Inc()
}

func (m *Metrics) EntriesChanged(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}

var _ cache.Observer = (*Metrics)(nil)
