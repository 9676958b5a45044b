package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/voyantlabs/advisory-pipeline/internal/report"
)

// Scheduler re-runs the pipeline on a fixed interval until the context is
// cancelled. An interval of zero means a single run.
type Scheduler struct {
	pipeline *Pipeline
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler wraps a pipeline in an interval loop.
func NewScheduler(p *Pipeline, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{pipeline: p, interval: interval, logger: logger}
}

// Run executes runs until ctx is done and returns the last run's report. The
// first run starts immediately; subsequent runs tick at the interval
// regardless of how long each run takes.
func (s *Scheduler) Run(ctx context.Context) (report.RunReport, error) {
	rep, err := s.pipeline.Run(ctx)
	if err != nil || s.interval <= 0 {
		return rep, err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return rep, nil
		case <-ticker.C:
			next, err := s.pipeline.Run(ctx)
			if err != nil {
				s.logger.Error("scheduled run failed", zap.Error(err))
				continue
			}
			rep = next
		}
	}
}
