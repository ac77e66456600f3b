package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	hotSetSizeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "hotkey", "hot_set_size"),
		"Current number of keys in the hot set",
		nil, nil,
	)
	droppedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "hotkey", "evictions_dropped_total"),
		"Evictions discarded because the eviction queue overflowed",
		nil, nil,
	)
	totalDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "hotkey", "decayed_total"),
		"Sum of recorded increments, halved on every decay",
		nil, nil,
	)
)

// HotSetSource is the live state a HotSetCollector reads on each scrape.
type HotSetSource interface {
	Len() int
	Dropped() uint64
	Total() uint64
}

// HotSetCollector reports hot-set gauges straight from the estimator.
type HotSetCollector struct {
	src HotSetSource
}

func NewHotSetCollector(src HotSetSource) *HotSetCollector {
	return &HotSetCollector{src: src}
}

func (c *HotSetCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- hotSetSizeDesc
	ch <- droppedDesc
	ch <- totalDesc
}

func (c *HotSetCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(hotSetSizeDesc, prometheus.GaugeValue, float64(c.src.Len()))
	ch <- prometheus.MustNewConstMetric(droppedDesc, prometheus.CounterValue, float64(c.src.Dropped()))
	ch <- prometheus.MustNewConstMetric(totalDesc, prometheus.GaugeValue, float64(c.src.Total()))
}
