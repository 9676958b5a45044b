// Package store defines the persistence boundary for advisory records.
package store

import (
	"context"
	"fmt"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
)

// Store is the persistence contract the pipeline depends on. Implementations
// must be safe for concurrent use; each Upsert call is one transactional
// batch (all records for one source commit or none do).
type Store interface {
	// LoadFingerprints returns fingerprint -> content digest for every
	// stored advisory. Loaded once per run, not per record.
	LoadFingerprints(ctx context.Context) (map[string]string, error)
	// Upsert writes a batch: insert on new fingerprint, update mutable
	// fields on changed content, no-op otherwise.
	Upsert(ctx context.Context, records []advisory.Record) (advisory.UpsertReport, error)
	Close()
}

// ValidateRecord re-checks schema invariants at the storage boundary,
// independent of the Normalizer.
func ValidateRecord(rec advisory.Record) error {
	if rec.Country == "" {
		return fmt.Errorf("record %s: empty country: %w", rec.Fingerprint, advisory.ErrConstraintViolation)
	}
	if !rec.RiskLevel.Valid() {
		return fmt.Errorf("record %s: risk level %q: %w", rec.Fingerprint, rec.RiskLevel, advisory.ErrConstraintViolation)
	}
	if rec.Fingerprint == "" {
		return fmt.Errorf("record for %s/%s: empty fingerprint: %w", rec.SourceName, rec.Country, advisory.ErrConstraintViolation)
	}
	if rec.SourceName == "" {
		return fmt.Errorf("record %s: empty source name: %w", rec.Fingerprint, advisory.ErrConstraintViolation)
	}
	return nil
}
