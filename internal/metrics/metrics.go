// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	advisoriesTotal           *prometheus.CounterVec
	sourceJobsTotal           *prometheus.CounterVec
	fetchDurationSeconds      *prometheus.HistogramVec
	fetchRetriesTotal         *prometheus.CounterVec
	recordsDroppedTotal       *prometheus.CounterVec
	proxyFailuresTotal        *prometheus.CounterVec
	activeSourceJobs          prometheus.Gauge
	runDurationSeconds        prometheus.Histogram
	lastRunCompletedTimestamp prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		advisoriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advisories_total",
				Help: "Total advisory records processed, labeled by source and decision.",
			},
			[]string{"source", "decision"},
		)

		sourceJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advisory_source_jobs_total",
				Help: "Total per-source ingestion jobs, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "advisory_fetch_duration_seconds",
				Help:    "Histogram of source fetch latencies, labeled by host.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advisory_fetch_retries_total",
				Help: "Total fetch retry attempts, labeled by host.",
			},
			[]string{"host"},
		)

		recordsDroppedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advisory_records_dropped_total",
				Help: "Total extracted records dropped during normalization, labeled by source and reason.",
			},
			[]string{"source", "reason"},
		)

		proxyFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advisory_proxy_failures_total",
				Help: "Total proxy request failures, labeled by proxy host.",
			},
			[]string{"proxy"},
		)

		activeSourceJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "advisory_active_source_jobs",
				Help: "Number of source jobs currently in flight.",
			},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "advisory_run_duration_seconds",
				Help:    "Histogram of full pipeline run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		lastRunCompletedTimestamp = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "advisory_last_run_completed_timestamp_seconds",
				Help: "Unix timestamp of the most recently completed run.",
			},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAdvisories records persistence decisions for one source batch.
func ObserveAdvisories(source string, inserted, updated, unchanged int) {
	if inserted > 0 {
		advisoriesTotal.WithLabelValues(source, "inserted").Add(float64(inserted))
	}
	if updated > 0 {
		advisoriesTotal.WithLabelValues(source, "updated").Add(float64(updated))
	}
	if unchanged > 0 {
		advisoriesTotal.WithLabelValues(source, "unchanged").Add(float64(unchanged))
	}
}

// ObserveSourceJob increments the job counter for the given outcome.
func ObserveSourceJob(source, outcome string) {
	sourceJobsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveFetch records the duration of one fetch against a source URL.
func ObserveFetch(rawURL string, duration time.Duration) {
	fetchDurationSeconds.WithLabelValues(SanitizeHost(rawURL)).Observe(duration.Seconds())
}

// ObserveFetchRetry counts a retried fetch attempt.
func ObserveFetchRetry(rawURL string) {
	fetchRetriesTotal.WithLabelValues(SanitizeHost(rawURL)).Inc()
}

// ObserveDroppedRecord counts a record dropped during normalization.
func ObserveDroppedRecord(source, reason string) {
	recordsDroppedTotal.WithLabelValues(source, reason).Inc()
}

// ObserveProxyFailure counts a failed request through the given proxy.
func ObserveProxyFailure(proxyURL string) {
	proxyFailuresTotal.WithLabelValues(SanitizeHost(proxyURL)).Inc()
}

// IncActiveJobs increments the in-flight source job gauge.
func IncActiveJobs() {
	activeSourceJobs.Inc()
}

// DecActiveJobs decrements the in-flight source job gauge.
func DecActiveJobs() {
	activeSourceJobs.Dec()
}

// ObserveRun records the duration of a completed pipeline run.
func ObserveRun(duration time.Duration, completedAt time.Time) {
	runDurationSeconds.Observe(duration.Seconds())
	lastRunCompletedTimestamp.Set(float64(completedAt.Unix()))
}
