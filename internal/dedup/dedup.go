// Package dedup classifies normalized records against the fingerprints the
// store already knows. It is a pure decision layer: it never touches storage,
// so the classification rules stay independently testable.
package dedup

import "github.com/voyantlabs/advisory-pipeline/internal/advisory"

// Decision is the outcome for one record.
type Decision string

// Classification outcomes.
const (
	Insert    Decision = "insert"
	Update    Decision = "update"
	Unchanged Decision = "unchanged"
)

// Known maps fingerprint to the stored content digest. It is loaded from the
// store once per run, not per record.
type Known map[string]string

// Resolve classifies a single record: Insert when the fingerprint is unseen,
// Update when it is known but the mutable-field digest differs, Unchanged
// when the stored content is identical.
func Resolve(rec advisory.Record, known Known) Decision {
	digest, seen := known[rec.Fingerprint]
	switch {
	case !seen:
		return Insert
	case digest != rec.ContentDigest:
		return Update
	default:
		return Unchanged
	}
}

// Batch partitions a normalized batch by decision. Within-batch duplicates
// (two candidates on one page collapsing to the same fingerprint) keep the
// first occurrence only.
type Batch struct {
	Inserts   []advisory.Record
	Updates   []advisory.Record
	Unchanged int
}

// Split partitions records against the known set.
func Split(records []advisory.Record, known Known) Batch {
	var out Batch
	seenInBatch := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, dup := seenInBatch[rec.Fingerprint]; dup {
			continue
		}
		seenInBatch[rec.Fingerprint] = struct{}{}

		switch Resolve(rec, known) {
		case Insert:
			out.Inserts = append(out.Inserts, rec)
		case Update:
			out.Updates = append(out.Updates, rec)
		default:
			out.Unchanged++
		}
	}
	return out
}
