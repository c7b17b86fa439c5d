package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"musallago/pkg/tracker"
)

// NewMetricsHandler serves the tracker counters alongside Go runtime metrics.
func NewMetricsHandler(t *tracker.Tracker) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(tracker.NewCollector(t)); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
