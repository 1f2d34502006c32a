package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the navigation engine's prometheus instruments on its own
// registry so the /metrics handler exposes nothing else.
type Collector struct {
	reg *prometheus.Registry

	ActiveSessions prometheus.Gauge

	RoutingCalls     prometheus.Counter
	RoutingFailures  prometheus.Counter
	RouteCacheHits   prometheus.Counter
	DeviationRecalcs prometheus.Counter
	ManualRecalcs    prometheus.Counter

	RealtimeEvents  prometheus.Counter
	RegressedEvents prometheus.Counter

	LocationWrites     prometheus.Counter
	LocationWriteFails prometheus.Counter

	RoutingDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nav_active_sessions",
			Help: "Number of navigation sessions currently running.",
		}),
		RoutingCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_routing_calls_total",
			Help: "Total external routing API calls.",
		}),
		RoutingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_routing_failures_total",
			Help: "Total failed external routing API calls.",
		}),
		RouteCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_route_cache_hits_total",
			Help: "Route calculations served from the per-trip memo.",
		}),
		DeviationRecalcs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_deviation_recalcs_total",
			Help: "Automatic recomputations triggered by route deviation.",
		}),
		ManualRecalcs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_manual_recalcs_total",
			Help: "User-initiated route recomputations.",
		}),
		RealtimeEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_realtime_events_total",
			Help: "Realtime trip update events processed.",
		}),
		RegressedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_regressed_events_total",
			Help: "Realtime events dropped for violating phase monotonicity.",
		}),
		LocationWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_location_writes_total",
			Help: "Throttled provider location writes to the backend.",
		}),
		LocationWriteFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_location_write_failures_total",
			Help: "Failed provider location writes (swallowed, retried next tick).",
		}),
		RoutingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nav_routing_duration_seconds",
			Help:    "Duration of external routing API calls.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	reg.MustRegister(
		c.ActiveSessions,
		c.RoutingCalls, c.RoutingFailures, c.RouteCacheHits,
		c.DeviationRecalcs, c.ManualRecalcs,
		c.RealtimeEvents, c.RegressedEvents,
		c.LocationWrites, c.LocationWriteFails,
		c.RoutingDuration,
	)

	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
