package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FetchAttempts counts network fetches per source and outcome
// ("success", "error").
var FetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "iptv_core_fetch_attempts_total",
	Help: "Number of network fetch attempts",
}, []string{"source", "outcome"})

// CacheServes counts loads answered from the snapshot store instead of the
// network, labeled by freshness ("fresh" within TTL, "stale" beyond it).
var CacheServes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "iptv_core_cache_serves_total",
	Help: "Number of loads served from the snapshot store",
}, []string{"source", "freshness"})

// StreamsParsed tracks the stream count of the most recent parse per source.
var StreamsParsed = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "iptv_core_streams_parsed",
	Help: "Streams in the most recent parse result",
}, []string{"source"})

// LoadDuration observes end-to-end load time per source, cache fallbacks
// included.
var LoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "iptv_core_load_duration_seconds",
	Help:    "End-to-end duration of load operations",
	Buckets: prometheus.DefBuckets,
}, []string{"source"})

// AuthFailures counts rejected Xtream credential checks per source.
var AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "iptv_core_auth_failures_total",
	Help: "Number of failed Xtream authentications",
}, []string{"source"})
