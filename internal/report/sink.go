package report

import "context"

// Sink consumes completed run reports. Implementations must honor ctx
// deadlines and may be invoked from the scheduler loop between runs.
type Sink interface {
	Publish(ctx context.Context, rep RunReport) error
	Close(ctx context.Context) error
}
