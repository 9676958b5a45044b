// Package extract parses raw fetched content into source-native candidate
// records. One Extractor implementation exists per source kind; the registry
// keeps the orchestrator ignorant of source internals.
package extract

import (
	"fmt"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
)

// Extractor parses one source's document structure.
//
// A nil error with zero candidates is a valid empty result (the page loaded
// and its skeleton was intact, there was just nothing to report). When the
// markup the extractor depends on is missing it returns an error wrapping
// advisory.ErrStructureChanged so operators can tell selector drift apart
// from a quiet day.
type Extractor interface {
	Kind() advisory.SourceKind
	Extract(content advisory.RawContent) ([]advisory.Candidate, error)
}

// New returns the extractor registered for the given kind.
func New(kind advisory.SourceKind) (Extractor, error) {
	switch kind {
	case advisory.KindStateDept:
		return &StateDeptExtractor{}, nil
	case advisory.KindFCDO:
		return &FCDOExtractor{}, nil
	case advisory.KindSmartraveller:
		return &SmartravellerExtractor{}, nil
	case advisory.KindReliefWeb:
		return &ReliefWebExtractor{}, nil
	case advisory.KindFeed:
		return &FeedExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

func structureErr(kind advisory.SourceKind, detail string) error {
	return fmt.Errorf("%s: %s: %w", kind, detail, advisory.ErrStructureChanged)
}
