// Package memory provides an in-memory Store for tests and database-less
// development runs.
package memory

import (
	"context"
	"sync"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
	"github.com/voyantlabs/advisory-pipeline/internal/store"
)

// Store keeps advisory records in a map keyed by fingerprint.
type Store struct {
	mu      sync.Mutex
	records map[string]advisory.Record
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{records: make(map[string]advisory.Record)}
}

// LoadFingerprints implements store.Store.
func (s *Store) LoadFingerprints(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	known := make(map[string]string, len(s.records))
	for fp, rec := range s.records {
		known[fp] = rec.ContentDigest
	}
	return known, nil
}

// Upsert implements store.Store with the same insert/update/unchanged
// semantics as the Postgres implementation.
func (s *Store) Upsert(_ context.Context, records []advisory.Record) (advisory.UpsertReport, error) {
	var report advisory.UpsertReport
	for _, rec := range records {
		if err := store.ValidateRecord(rec); err != nil {
			return advisory.UpsertReport{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		existing, ok := s.records[rec.Fingerprint]
		switch {
		case !ok:
			s.records[rec.Fingerprint] = rec
			report.Inserted++
		case existing.ContentDigest != rec.ContentDigest:
			s.records[rec.Fingerprint] = rec
			report.Updated++
		default:
			report.Unchanged++
		}
	}
	return report, nil
}

// Get returns the stored record for a fingerprint.
func (s *Store) Get(fingerprint string) (advisory.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[fingerprint]
	return rec, ok
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close implements store.Store.
func (s *Store) Close() {}
