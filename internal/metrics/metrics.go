// Package metrics holds the client layer's Prometheus instrumentation.
//
// The registry is library-owned so embedding applications can expose it (or
// ignore it) without colliding with their own default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates every collector the client layer records into.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestErrors   *prometheus.CounterVec
	StoreLoads      *prometheus.CounterVec
	StoreRetries    prometheus.Counter
	SearchRemote    prometheus.Counter
	SearchCacheHit  prometheus.Counter
	SearchCacheMiss prometheus.Counter
}

// New creates a fresh registry with all client layer collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forum_client",
			Name:      "requests_total",
			Help:      "Backend requests issued, by operation.",
		}, []string{"operation"}),
		RequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forum_client",
			Name:      "request_errors_total",
			Help:      "Backend request failures, by error kind.",
		}, []string{"kind"}),
		StoreLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forum_client",
			Name:      "store_loads_total",
			Help:      "Resource store load outcomes.",
		}, []string{"resource", "outcome"}),
		StoreRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forum_client",
			Name:      "store_retries_total",
			Help:      "In-flight retry attempts within resource store loads.",
		}),
		SearchRemote: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forum_client",
			Name:      "search_remote_total",
			Help:      "Remote search queries issued.",
		}),
		SearchCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forum_client",
			Name:      "search_cache_hits_total",
			Help:      "Search queries answered from the response cache.",
		}),
		SearchCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forum_client",
			Name:      "search_cache_misses_total",
			Help:      "Search queries that missed the response cache.",
		}),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestErrors,
		m.StoreLoads,
		m.StoreRetries,
		m.SearchRemote,
		m.SearchCacheHit,
		m.SearchCacheMiss,
	)
	return m
}

// Registry exposes the underlying registry for scraping or testing.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

var defaultMetrics = New()

// Default returns a shared process-wide Metrics instance.
func Default() *Metrics {
	return defaultMetrics
}
