package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func sampleReport() RunReport {
	start := time.Unix(1700000000, 0).UTC()
	return RunReport{
		RunID:      uuid.New(),
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Results: []SourceJobResult{
			{SourceName: "us_state_dept", Outcome: OutcomeOK, RecordsFound: 200, Inserted: 3, Updated: 1, Unchanged: 196},
			{SourceName: "fcdo", Outcome: OutcomeStructureChanged, Error: "advisory list not found"},
			{SourceName: "reliefweb", Outcome: OutcomeEmpty},
		},
	}
}

func TestRunReportAggregates(t *testing.T) {
	t.Parallel()

	rep := sampleReport()
	require.NoError(t, rep.Validate())
	require.Equal(t, 90*time.Second, rep.Duration())
	require.True(t, rep.AnyFailed())
	require.Equal(t, 200, rep.TotalPersisted())
}

func TestOutcomeFailureClassification(t *testing.T) {
	t.Parallel()

	require.False(t, SourceJobResult{Outcome: OutcomeOK}.Failed())
	require.False(t, SourceJobResult{Outcome: OutcomeEmpty}.Failed())
	require.True(t, SourceJobResult{Outcome: OutcomeFetchFailed}.Failed())
	require.True(t, SourceJobResult{Outcome: OutcomeStructureChanged}.Failed())
	require.True(t, SourceJobResult{Outcome: OutcomePersistFailed}.Failed())
	require.True(t, SourceJobResult{Outcome: OutcomeConfigError}.Failed())
}

func TestRunReportValidate(t *testing.T) {
	t.Parallel()

	rep := sampleReport()
	rep.RunID = uuid.Nil
	require.Error(t, rep.Validate())

	rep = sampleReport()
	rep.FinishedAt = rep.StartedAt.Add(-time.Second)
	require.Error(t, rep.Validate())
}

type recordingSink struct {
	published []RunReport
	closed    bool
	err       error
}

func (s *recordingSink) Publish(_ context.Context, rep RunReport) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, rep)
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.closed = true
	return nil
}

func TestFanoutPublishesToAllSinks(t *testing.T) {
	t.Parallel()

	healthy := &recordingSink{}
	broken := &recordingSink{err: errors.New("topic unavailable")}
	trailing := &recordingSink{}

	f := NewFanout(healthy, broken, nil, trailing)
	rep := sampleReport()

	err := f.Publish(context.Background(), rep)
	require.Error(t, err)
	require.Len(t, healthy.published, 1)
	require.Len(t, trailing.published, 1)

	require.NoError(t, f.Close(context.Background()))
	require.True(t, healthy.closed)
	require.True(t, trailing.closed)
}
