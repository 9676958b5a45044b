package advisory

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies fetch failures for retry decisions.
type FetchErrorKind string

// Fetch failure classes.
const (
	FetchTransient FetchErrorKind = "transient"
	FetchPermanent FetchErrorKind = "permanent"
)

// FetchError wraps a retrieval failure with its retry classification.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.URL, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTransientFetch reports whether err is a fetch failure worth retrying.
func IsTransientFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchTransient
}

// IsPermanentFetch reports whether err is a fetch failure that must not be retried.
func IsPermanentFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchPermanent
}

// Extraction and normalization sentinels. Extractors return
// ErrStructureChanged when markup they depend on is missing, which is kept
// distinct from a legitimately empty result so operators can tell selector
// drift apart from a quiet day.
var (
	ErrStructureChanged    = errors.New("source structure changed")
	ErrUnresolvableCountry = errors.New("unresolvable country")
	ErrMalformedDate       = errors.New("malformed date")
)

// Persistence sentinels.
var (
	ErrConstraintViolation = errors.New("constraint violation")
	ErrConnectionLost      = errors.New("database connection lost")
)
