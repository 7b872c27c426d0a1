// Package metrics exposes the router's Prometheus collectors.
package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "swaprouter"

// Metrics holds all Prometheus metrics for the routing engine
type Metrics struct {
	// Quote metrics
	QuoteCalls *prometheus.CounterVec

	// Planning metrics
	RoutesPlanned  *prometheus.CounterVec
	RoutesNotFound prometheus.Counter

	// Execution metrics
	SwapsTotal    *prometheus.CounterVec
	SwapLatency   prometheus.Histogram
	FeesCollected *prometheus.CounterVec
	VenueVolume   *prometheus.CounterVec

	// Guards
	MEVRejections prometheus.Counter
	Paused        prometheus.Gauge

	// Sinks
	EventPublishFailures *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// Get returns the process-wide metrics, registering them on first use.
func Get() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			QuoteCalls: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "quote",
					Name:      "calls_total",
					Help:      "Venue quote calls by venue and result",
				},
				[]string{"venue", "result"},
			),
			RoutesPlanned: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "router",
					Name:      "routes_planned_total",
					Help:      "Routes selected by hop count",
				},
				[]string{"hops"},
			),
			RoutesNotFound: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "router",
					Name:      "routes_not_found_total",
					Help:      "Planning requests with no viable candidate",
				},
			),
			SwapsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "engine",
					Name:      "swaps_total",
					Help:      "Executions by outcome",
				},
				[]string{"status"},
			),
			SwapLatency: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Subsystem: "engine",
					Name:      "swap_latency_seconds",
					Help:      "Execution latency in seconds",
					Buckets:   prometheus.DefBuckets,
				},
			),
			FeesCollected: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "engine",
					Name:      "fees_collected_total",
					Help:      "Protocol fees collected in base units",
				},
				[]string{"asset"},
			),
			VenueVolume: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "engine",
					Name:      "venue_volume_total",
					Help:      "Input volume routed through each venue in base units",
				},
				[]string{"venue"},
			),
			MEVRejections: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "mev",
					Name:      "rejections_total",
					Help:      "Executions rejected by the per-origin throttle",
				},
			),
			Paused: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Subsystem: "engine",
					Name:      "paused",
					Help:      "1 while execution is paused",
				},
			),
			EventPublishFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "events",
					Name:      "publish_failures_total",
					Help:      "Trade events that could not be delivered, by sink",
				},
				[]string{"sink"},
			),
		}
	})
	return metrics
}

// AddBig adds a base-unit amount to c, rounded to float64.
func AddBig(c prometheus.Counter, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	f, _ := new(big.Float).SetInt(amount).Float64()
	c.Add(f)
}
