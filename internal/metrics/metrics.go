// Package metrics exposes the Prometheus instrumentation shared by the
// HTTP server and the streaming proxy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImportsTotal counts playlist imports and refreshes by source kind
	// and outcome.
	ImportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamdock_imports_total",
		Help: "Playlist imports and refreshes by kind and result.",
	}, []string{"kind", "result"})

	// ItemsImported counts stored content items by type.
	ItemsImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamdock_items_imported_total",
		Help: "Content items written to the store by content type.",
	}, []string{"content_type"})

	// ProxyBytes counts bytes relayed to players through the stream proxy.
	ProxyBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamdock_proxy_bytes_total",
		Help: "Bytes streamed through the proxy.",
	})

	// ManifestRewrites counts rewritten HLS manifests by kind.
	ManifestRewrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamdock_manifest_rewrites_total",
		Help: "HLS manifests rewritten by the proxy, by manifest kind.",
	}, []string{"kind"})

	// RequestDuration observes HTTP handler latency per route pattern.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamdock_http_request_duration_seconds",
		Help:    "HTTP request latency by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
)
