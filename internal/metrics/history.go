package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/abhisek/memora/internal/spacedrep"
)

// HistorySource returns every stored review log.
type HistorySource func() ([]spacedrep.ReviewLog, error)

// HistoryCollector derives the review series from the stored review log on
// scrape.
type HistoryCollector struct {
	source HistorySource

	reviews  *prometheus.Desc
	lapses   *prometheus.Desc
	interval *prometheus.Desc
}

// NewHistoryCollector returns a collector reading from source.
func NewHistoryCollector(source HistorySource) *HistoryCollector {
	return &HistoryCollector{
		source: source,
		reviews: prometheus.NewDesc(
			"memora_reviews_total",
			"Total number of committed reviews",
			[]string{"rating", "from", "to"}, nil,
		),
		lapses: prometheus.NewDesc(
			"memora_lapses_total",
			"Total number of reviews that forgot a graduated item",
			nil, nil,
		),
		interval: prometheus.NewDesc(
			"memora_scheduled_interval_days",
			"Scheduled interval of committed reviews in days",
			nil, nil,
		),
	}
}

func (c *HistoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.reviews
	ch <- c.lapses
	ch <- c.interval
}

func (c *HistoryCollector) Collect(ch chan<- prometheus.Metric) {
	logs, err := c.source()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.reviews, err)
		return
	}

	type transition struct{ rating, from, to string }
	var (
		counts  = make(map[transition]float64)
		lapses  float64
		sum     float64
		buckets = make(map[float64]uint64, len(intervalBuckets))
	)
	for _, l := range logs {
		counts[transition{l.Rating.String(), string(l.StateBefore.State), string(l.StateAfter.State)}]++
		if l.IsLapse() {
			lapses++
		}
		days := float64(l.StateAfter.ScheduledDays)
		sum += days
		for _, b := range intervalBuckets {
			if days <= b {
				buckets[b]++
			}
		}
	}

	for t, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.reviews, prometheus.CounterValue, n, t.rating, t.from, t.to)
	}
	ch <- prometheus.MustNewConstMetric(c.lapses, prometheus.CounterValue, lapses)
	ch <- prometheus.MustNewConstHistogram(c.interval, uint64(len(logs)), sum, buckets)
}
