// Package sinks provides report.Sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/voyantlabs/advisory-pipeline/internal/report"
)

// LogSink emits structured logs for completed runs. It is the default sink
// and always stays wired even when a durable sink is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Publish logs the run summary plus one line per source result.
func (s *LogSink) Publish(_ context.Context, rep report.RunReport) error {
	s.logger.Info("run complete",
		zap.String("run_id", rep.RunID.String()),
		zap.Time("started_at", rep.StartedAt),
		zap.Duration("duration", rep.Duration()),
		zap.Int("sources", len(rep.Results)),
		zap.Int("persisted", rep.TotalPersisted()),
		zap.Bool("any_failed", rep.AnyFailed()),
	)
	for _, res := range rep.Results {
		fields := []zap.Field{
			zap.String("run_id", rep.RunID.String()),
			zap.String("source", res.SourceName),
			zap.String("outcome", string(res.Outcome)),
			zap.Int("found", res.RecordsFound),
			zap.Int("inserted", res.Inserted),
			zap.Int("updated", res.Updated),
			zap.Int("unchanged", res.Unchanged),
			zap.Int("dropped", res.Dropped),
			zap.Duration("dur", res.Duration),
		}
		if res.Error != "" {
			fields = append(fields, zap.String("error", res.Error))
		}
		if res.Failed() {
			s.logger.Warn("source job failed", fields...)
			continue
		}
		s.logger.Info("source job done", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
