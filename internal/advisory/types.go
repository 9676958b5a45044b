// Package advisory defines core types shared across subsystems.
package advisory

import (
	"context"
	"net/http"
	"time"
)

// RiskLevel is the canonical advisory severity enumeration.
type RiskLevel string

// Risk levels persisted in the advisories table.
const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
	RiskUnknown  RiskLevel = "unknown"
)

// Valid reports whether r is one of the enumerated risk levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical, RiskUnknown:
		return true
	}
	return false
}

// SourceKind selects the extractor implementation for a configured source.
type SourceKind string

// Known extractor variants.
const (
	KindStateDept     SourceKind = "statedept"
	KindFCDO          SourceKind = "fcdo"
	KindSmartraveller SourceKind = "smartraveller"
	KindReliefWeb     SourceKind = "reliefweb"
	KindFeed          SourceKind = "feed"
)

// Source describes one configured external advisory source.
type Source struct {
	Name         string
	URL          string
	Kind         SourceKind
	Render       bool
	DateLayout   string
	RequireDate  bool
	RiskVocab    map[string]RiskLevel
	ExtraHeaders http.Header
}

// RawContent is the payload returned by a Fetcher.
type RawContent struct {
	URL         string
	StatusCode  int
	Headers     http.Header
	Body        []byte
	Duration    time.Duration
	FetchedVia  string
	RetrievedAt time.Time
}

// Candidate is an unvalidated, source-native record produced by an extractor.
type Candidate struct {
	Country   string
	Region    string
	RiskText  string
	Summary   string
	DateText  string
	Link      string
	RawText   string
}

// Record is the canonical advisory persisted to the store.
type Record struct {
	SourceName  string
	Country     string
	Region      string
	RiskLevel   RiskLevel
	Summary     string
	PublishedAt *time.Time
	ScrapedAt   time.Time
	Fingerprint string
	// ContentDigest hashes the mutable fields so an unchanged re-scrape is
	// detectable without comparing full rows.
	ContentDigest string
	RawPayload    string
}

// UpsertReport counts the outcome of one persistence batch.
type UpsertReport struct {
	Inserted  int
	Updated   int
	Unchanged int
}

// FetchRequest captures everything needed to retrieve one source page.
type FetchRequest struct {
	SourceName string
	URL        string
	Render     bool
	Headers    http.Header
	ProxyURL   string
}

// Fetcher retrieves raw content for a single request. Implementations must be
// safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (RawContent, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}
