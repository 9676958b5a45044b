// Package report defines the run summary structures emitted by the pipeline.
package report

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Outcome is the coarse result of one source job.
type Outcome string

// Supported source job outcomes.
const (
	OutcomeOK               Outcome = "ok"
	OutcomeEmpty            Outcome = "empty"
	OutcomeFetchFailed      Outcome = "fetch_failed"
	OutcomeStructureChanged Outcome = "structure_changed"
	OutcomePersistFailed    Outcome = "persist_failed"
	// OutcomeConfigError marks a job that could not start at all, such as a
	// source kind with no registered extractor. It points at configuration,
	// not at the remote site.
	OutcomeConfigError Outcome = "config_error"
)

// SourceJobResult summarizes one source's pass through the pipeline.
type SourceJobResult struct {
	SourceName   string        `json:"source_name"`
	Outcome      Outcome       `json:"outcome"`
	RecordsFound int           `json:"records_found"`
	Inserted     int           `json:"inserted"`
	Updated      int           `json:"updated"`
	Unchanged    int           `json:"unchanged"`
	Dropped      int           `json:"dropped"`
	Duration     time.Duration `json:"duration_ns"`
	Error        string        `json:"error,omitempty"`
}

// Failed reports whether the job ended in a failure outcome. An empty result
// set is not a failure; a structure drift is.
func (r SourceJobResult) Failed() bool {
	switch r.Outcome {
	case OutcomeFetchFailed, OutcomeStructureChanged, OutcomePersistFailed, OutcomeConfigError:
		return true
	}
	return false
}

// RunReport aggregates all source job results for one pipeline run.
type RunReport struct {
	RunID      uuid.UUID         `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Results    []SourceJobResult `json:"results"`
}

// Validate performs coarse validation on run reports.
func (r RunReport) Validate() error {
	if r.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if r.StartedAt.IsZero() {
		return errors.New("start timestamp is required")
	}
	if r.FinishedAt.Before(r.StartedAt) {
		return errors.New("finish timestamp precedes start")
	}
	return nil
}

// Duration is the wall time of the whole run.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// AnyFailed reports whether at least one source job failed.
func (r RunReport) AnyFailed() bool {
	for _, res := range r.Results {
		if res.Failed() {
			return true
		}
	}
	return false
}

// TotalPersisted counts records written across all sources, including
// unchanged re-observations.
func (r RunReport) TotalPersisted() int {
	total := 0
	for _, res := range r.Results {
		total += res.Inserted + res.Updated + res.Unchanged
	}
	return total
}
