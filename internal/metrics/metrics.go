package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhisek/memora/internal/spacedrep"
)

// intervalBuckets are the histogram buckets of scheduled intervals in days.
var intervalBuckets = []float64{1, 2, 3, 7, 14, 30, 60, 120, 365, 730, 3650}

// Metrics holds the Prometheus metrics for memora. The review series count
// what this process commits; RegisterHistory swaps them for series computed
// from the stored review log.
type Metrics struct {
	// Review metrics
	ReviewsTotal    *prometheus.CounterVec
	LapsesTotal     prometheus.Counter
	IntervalDays    prometheus.Histogram
	ReviewConflicts prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a registry and registers all metrics on it.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		ReviewsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memora_reviews_total",
				Help: "Total number of committed reviews",
			},
			[]string{"rating", "from", "to"},
		),
		LapsesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "memora_lapses_total",
				Help: "Total number of reviews that forgot a graduated item",
			},
		),
		IntervalDays: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "memora_scheduled_interval_days",
				Help:    "Scheduled interval of committed reviews in days",
				Buckets: intervalBuckets,
			},
		),
		ReviewConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "memora_review_conflicts_total",
				Help: "Total number of review commits retried after a concurrent change",
			},
		),
		registry: reg,
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDeck publishes deck gauges computed by source on every scrape.
func (m *Metrics) RegisterDeck(source DeckSource) error {
	return m.registry.Register(NewDeckCollector(source))
}

// RegisterHistory replaces the in-process review series with the same series
// computed from source on every scrape, so a process that only serves metrics
// reports the reviews committed by every other process.
func (m *Metrics) RegisterHistory(source HistorySource) error {
	m.registry.Unregister(m.ReviewsTotal)
	m.registry.Unregister(m.LapsesTotal)
	m.registry.Unregister(m.IntervalDays)
	return m.registry.Register(NewHistoryCollector(source))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordReview records one committed review.
func (m *Metrics) RecordReview(log spacedrep.ReviewLog) {
	m.ReviewsTotal.WithLabelValues(
		log.Rating.String(),
		string(log.StateBefore.State),
		string(log.StateAfter.State),
	).Inc()
	if log.IsLapse() {
		m.LapsesTotal.Inc()
	}
	m.IntervalDays.Observe(float64(log.StateAfter.ScheduledDays))
}

// RecordConflict records a commit that lost an optimistic concurrency check.
func (m *Metrics) RecordConflict() {
	m.ReviewConflicts.Inc()
}
