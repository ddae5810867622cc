package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/abhisek/memora/internal/spacedrep"
)

// DeckSource returns the current deck statistics.
type DeckSource func() (spacedrep.DeckStats, error)

// DeckCollector computes deck gauges on scrape instead of tracking them on
// every write.
type DeckCollector struct {
	source DeckSource

	items   *prometheus.Desc
	due     *prometheus.Desc
	overdue *prometheus.Desc
}

// NewDeckCollector returns a collector reading from source.
func NewDeckCollector(source DeckSource) *DeckCollector {
	return &DeckCollector{
		source: source,
		items: prometheus.NewDesc(
			"memora_deck_items",
			"Number of items per lifecycle state",
			[]string{"state"}, nil,
		),
		due: prometheus.NewDesc(
			"memora_deck_due_items",
			"Number of items due for review",
			nil, nil,
		),
		overdue: prometheus.NewDesc(
			"memora_deck_overdue_items",
			"Number of review items past their due time",
			nil, nil,
		),
	}
}

func (c *DeckCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.items
	ch <- c.due
	ch <- c.overdue
}

func (c *DeckCollector) Collect(ch chan<- prometheus.Metric) {
	st, err := c.source()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.items, err)
		return
	}

	counts := map[spacedrep.State]int{
		spacedrep.StateNew:        st.New,
		spacedrep.StateLearning:   st.Learning,
		spacedrep.StateReview:     st.Review,
		spacedrep.StateRelearning: st.Relearning,
	}
	for _, s := range spacedrep.States {
		ch <- prometheus.MustNewConstMetric(c.items, prometheus.GaugeValue, float64(counts[s]), string(s))
	}
	ch <- prometheus.MustNewConstMetric(c.due, prometheus.GaugeValue, float64(st.Due))
	ch <- prometheus.MustNewConstMetric(c.overdue, prometheus.GaugeValue, float64(st.Overdue))
}
