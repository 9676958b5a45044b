package sinks

import (
	"context"

	"github.com/voyantlabs/advisory-pipeline/internal/metrics"
	"github.com/voyantlabs/advisory-pipeline/internal/report"
)

// MetricsSink forwards run reports into the service's Prometheus collectors.
type MetricsSink struct{}

// NewMetricsSink initializes the collectors and returns the sink.
func NewMetricsSink() *MetricsSink {
	metrics.Init()
	return &MetricsSink{}
}

// Publish updates per-source and per-run collectors from the report.
func (s *MetricsSink) Publish(_ context.Context, rep report.RunReport) error {
	for _, res := range rep.Results {
		metrics.ObserveSourceJob(res.SourceName, string(res.Outcome))
		metrics.ObserveAdvisories(res.SourceName, res.Inserted, res.Updated, res.Unchanged)
	}
	metrics.ObserveRun(rep.Duration(), rep.FinishedAt)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *MetricsSink) Close(context.Context) error {
	return nil
}
