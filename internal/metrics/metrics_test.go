package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(JobEvents, ResolveAttempts, ResolveLatency, ActiveJobs, BytesFetched, CacheLookups)

	JobEvents.WithLabelValues("complete").Inc()
	ResolveAttempts.WithLabelValues("not_ready").Add(2)
	ActiveJobs.Set(3)
	BytesFetched.Add(1024)
	CacheLookups.WithLabelValues("hit").Inc()

	// Histogram: observe one sample to ensure collector is live
	ResolveLatency.WithLabelValues("ready").Observe(0.05)

	expectedEvents := `# HELP vodcache_job_events_total Count of fetch job events processed by the recorder.
# TYPE vodcache_job_events_total counter
vodcache_job_events_total{type="complete"} 1
`
	if err := testutil.CollectAndCompare(JobEvents, strings.NewReader(expectedEvents)); err != nil {
		t.Fatalf("unexpected job events metric: %v", err)
	}

	expectedAttempts := `# HELP vodcache_resolve_attempts_total Upstream resolution attempts by outcome.
# TYPE vodcache_resolve_attempts_total counter
vodcache_resolve_attempts_total{outcome="not_ready"} 2
`
	if err := testutil.CollectAndCompare(ResolveAttempts, strings.NewReader(expectedAttempts)); err != nil {
		t.Fatalf("unexpected resolve attempts metric: %v", err)
	}

	expectedGauge := `# HELP vodcache_active_jobs Number of fetch jobs currently registered.
# TYPE vodcache_active_jobs gauge
vodcache_active_jobs 3
`
	if err := testutil.CollectAndCompare(ActiveJobs, strings.NewReader(expectedGauge)); err != nil {
		t.Fatalf("unexpected active jobs gauge: %v", err)
	}

	expectedBytes := `# HELP vodcache_bytes_fetched_total Bytes written to cache files by the fetcher.
# TYPE vodcache_bytes_fetched_total counter
vodcache_bytes_fetched_total 1024
`
	if err := testutil.CollectAndCompare(BytesFetched, strings.NewReader(expectedBytes)); err != nil {
		t.Fatalf("unexpected bytes fetched metric: %v", err)
	}

	expectedLookups := `# HELP vodcache_cache_lookups_total Cache lookups by result (hit, stale, partial, miss).
# TYPE vodcache_cache_lookups_total counter
vodcache_cache_lookups_total{result="hit"} 1
`
	if err := testutil.CollectAndCompare(CacheLookups, strings.NewReader(expectedLookups)); err != nil {
		t.Fatalf("unexpected cache lookups metric: %v", err)
	}
}

func TestResolveLatencyHistogram(t *testing.T) {
	// Use a fresh histogram to avoid cross-test contamination
	ResolveLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vodcache",
			Name:      "resolve_latency_seconds",
			Help:      "Latency of a full Resolve call including retries.",
		},
		[]string{"outcome"},
	)

	ResolveLatency.WithLabelValues("ready").Observe(0.03)
	ResolveLatency.WithLabelValues("ready").Observe(0.6)

	expected := `# HELP vodcache_resolve_latency_seconds Latency of a full Resolve call including retries.
# TYPE vodcache_resolve_latency_seconds histogram
vodcache_resolve_latency_seconds_bucket{outcome="ready",le="0.005"} 0
vodcache_resolve_latency_seconds_bucket{outcome="ready",le="0.01"} 0
vodcache_resolve_latency_seconds_bucket{outcome="ready",le="0.025"} 0
vodcache_resolve_latency_seconds_bucket{outcome="ready",le="0.05"} 1
vodcache_resolve_latency_seconds_bucket{outcome="ready",le="0.1"} 1
vodcache_resolve_latency_seconds_bucket{outcome="ready",le="0.25"} 1
vodcache_resolve_latency_seconds_bucket{outcome="ready",le="0.5"} 1
vodcache_resolve_latency_seconds_bucket{outcome="ready",le="1"} 2
vodcache_resolve_latency_seconds_bucket{outcome="ready",le="2.5"} 2
vodcache_resolve_latency_seconds_bucket{outcome="ready",le="5"} 2
vodcache_resolve_latency_seconds_bucket{outcome="ready",le="10"} 2
vodcache_resolve_latency_seconds_bucket{outcome="ready",le="+Inf"} 2
vodcache_resolve_latency_seconds_sum{outcome="ready"} 0.63
vodcache_resolve_latency_seconds_count{outcome="ready"} 2
`
	if err := testutil.CollectAndCompare(ResolveLatency, strings.NewReader(expected)); err != nil {
		t.Fatalf("unexpected histogram: %v", err)
	}
}
