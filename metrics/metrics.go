// Package metrics provides Prometheus collectors for the HTTP API and the
// search engine:
//   - http_request_total / http_request_duration_seconds / http_request_in_flight
//   - anvisa_search_total: searches by outcome status
//   - anvisa_search_duration_seconds: whole-search latency
//   - anvisa_records_extracted_total: records returned
//   - anvisa_locator_attempts_total / anvisa_locator_attempt_seconds: per
//     locator attempt, by step and chain index
//
// All collectors are registered with the default registry at init.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	SearchTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anvisa_search_total",
			Help: "Searches by outcome status",
		},
		[]string{"status"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "anvisa_search_duration_seconds",
			Help:    "Whole search latency",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 180, 300},
		},
	)

	RecordsExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "anvisa_records_extracted_total",
			Help: "Product records returned by searches",
		},
	)

	LocatorAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anvisa_locator_attempts_total",
			Help: "Locator attempts by step, chain index and outcome",
		},
		[]string{"step", "locator", "outcome"},
	)

	LocatorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anvisa_locator_attempt_seconds",
			Help:    "Locator attempt latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"step", "locator"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(SearchTotals)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(RecordsExtracted)
	prometheus.MustRegister(LocatorAttempts)
	prometheus.MustRegister(LocatorLatency)
}

// Locators records locator attempts. It satisfies engine.AttemptObserver.
type Locators struct{}

func (Locators) ObserveAttempt(step string, locator int, latency time.Duration, ok bool) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	idx := strconv.Itoa(locator)
	LocatorAttempts.WithLabelValues(step, idx, outcome).Inc()
	LocatorLatency.WithLabelValues(step, idx).Observe(latency.Seconds())
}

// ObserveSearch records one finished search.
func ObserveSearch(status string, records int, elapsed time.Duration) {
	SearchTotals.WithLabelValues(status).Inc()
	SearchDuration.Observe(elapsed.Seconds())
	RecordsExtracted.Add(float64(records))
}
