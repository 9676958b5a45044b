package report

import (
	"context"
	"errors"
)

// Fanout publishes each report to every child sink. Publish failures are
// collected rather than short-circuiting so one slow or broken sink cannot
// starve the others.
type Fanout struct {
	sinks []Sink
}

// NewFanout builds a Fanout over the given sinks; nil sinks are skipped.
func NewFanout(sinks ...Sink) *Fanout {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Fanout{sinks: kept}
}

// Publish implements Sink.
func (f *Fanout) Publish(ctx context.Context, rep RunReport) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, rep); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Sink.
func (f *Fanout) Close(ctx context.Context) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
