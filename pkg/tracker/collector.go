package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes Tracker counters to Prometheus. Values are read on scrape.
type Collector struct {
	t *Tracker

	cacheHits   *prometheus.Desc
	cacheMisses *prometheus.Desc
	apiSuccess  *prometheus.Desc
	apiFailures *prometheus.Desc
	apiZero     *prometheus.Desc
	fallbacks   *prometheus.Desc
}

// NewCollector creates a Collector for t.
func NewCollector(t *Tracker) *Collector {
	labels := []string{"provider"}
	return &Collector{
		t:           t,
		cacheHits:   prometheus.NewDesc("musallago_cache_hits_total", "Cache hits per provider.", labels, nil),
		cacheMisses: prometheus.NewDesc("musallago_cache_misses_total", "Cache misses per provider.", labels, nil),
		apiSuccess:  prometheus.NewDesc("musallago_api_success_total", "Successful remote calls per provider.", labels, nil),
		apiFailures: prometheus.NewDesc("musallago_api_failures_total", "Failed remote calls per provider.", labels, nil),
		apiZero:     prometheus.NewDesc("musallago_api_zero_results_total", "Remote calls that returned no data.", labels, nil),
		fallbacks:   prometheus.NewDesc("musallago_fallbacks_total", "Responses served from cache or synthesized after a failure.", labels, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cacheHits
	ch <- c.cacheMisses
	ch <- c.apiSuccess
	ch <- c.apiFailures
	ch <- c.apiZero
	ch <- c.fallbacks
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for provider, s := range c.t.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(s.CacheHits), provider)
		ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(s.CacheMisses), provider)
		ch <- prometheus.MustNewConstMetric(c.apiSuccess, prometheus.CounterValue, float64(s.APISuccess), provider)
		ch <- prometheus.MustNewConstMetric(c.apiFailures, prometheus.CounterValue, float64(s.APIFailures), provider)
		ch <- prometheus.MustNewConstMetric(c.apiZero, prometheus.CounterValue, float64(s.APIZeroResult), provider)
		ch <- prometheus.MustNewConstMetric(c.fallbacks, prometheus.CounterValue, float64(s.Fallbacks), provider)
	}
}
