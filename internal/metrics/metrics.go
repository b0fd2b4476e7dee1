package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	JobEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vodcache",
			Name:      "job_events_total",
			Help:      "Count of fetch job events processed by the recorder.",
		},
		[]string{"type"},
	)

	ResolveAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vodcache",
			Name:      "resolve_attempts_total",
			Help:      "Upstream resolution attempts by outcome.",
		},
		[]string{"outcome"},
	)

	ResolveLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vodcache",
			Name:      "resolve_latency_seconds",
			Help:      "Latency of a full Resolve call including retries.",
		},
		[]string{"outcome"},
	)

	ActiveJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vodcache",
			Name:      "active_jobs",
			Help:      "Number of fetch jobs currently registered.",
		},
	)

	BytesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vodcache",
			Name:      "bytes_fetched_total",
			Help:      "Bytes written to cache files by the fetcher.",
		},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vodcache",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result (hit, stale, partial, miss).",
		},
		[]string{"result"},
	)
)

// Register registers the vodcache metrics into the default registry.
func Register() {
	prometheus.MustRegister(JobEvents, ResolveAttempts, ResolveLatency, ActiveJobs, BytesFetched, CacheLookups)
}
