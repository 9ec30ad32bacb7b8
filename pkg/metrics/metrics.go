// Package metrics defines the Prometheus collectors shared by the
// server and the remote client. 'promauto' registers them on import,
// so there is no initialization to wire.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 1. HTTP requests total (counter), labeled by method, path and
	// status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banchi_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// 2. HTTP request duration (histogram). Buckets run from the
	// sub-millisecond trie lookups to the first reverse call, which
	// pays for the spatial index build.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "banchi_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60},
		},
		[]string{"method", "path"},
	)

	// 3. Geocoding searches total (counter), labeled by direction:
	// "forward" or "reverse".
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banchi_searches_total",
			Help: "Total number of geocoding searches served",
		},
		[]string{"direction"},
	)

	// 4. Spatial index build time (gauge). Holds the duration of the
	// last build; zero until the first reverse query triggers one.
	SpatialBuildSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "banchi_spatial_build_seconds",
			Help: "Duration of the last spatial index build in seconds",
		},
	)

	// 5. Remote node cache hits and misses (counter), labeled by
	// outcome. Fed by the client-side LRU.
	RemoteCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banchi_remote_cache_lookups_total",
			Help: "Node cache lookups on the remote client, by outcome",
		},
		[]string{"outcome"},
	)
)
