// Package normalize canonicalizes source-native candidate records into the
// unified advisory schema and computes their dedup fingerprints.
package normalize

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
	"github.com/voyantlabs/advisory-pipeline/internal/hash/sha256"
)

// foldDiacritics decomposes accented letters and drops the combining marks so
// "Côte d'Ivoire" and "Cote d'Ivoire" share an identity key.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// commonDateLayouts are tried after the source-hinted layout; they cover the
// formats the configured government sites publish.
var commonDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02/01/2006",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
}

// Normalizer converts candidates for one configured source.
type Normalizer struct {
	source advisory.Source
	clock  advisory.Clock
}

// New builds a Normalizer bound to one source definition.
func New(source advisory.Source, clock advisory.Clock) *Normalizer {
	return &Normalizer{source: source, clock: clock}
}

// Normalize canonicalizes a candidate into a Record. It returns
// advisory.ErrUnresolvableCountry when the country cannot be mapped (the
// record must be dropped, never stored with a guess) and
// advisory.ErrMalformedDate when the source requires dates and the candidate's
// cannot be parsed. An unmapped risk phrase is not an error; it resolves to
// RiskUnknown.
func (n *Normalizer) Normalize(c advisory.Candidate) (advisory.Record, error) {
	country, ok := ResolveCountry(c.Country)
	if !ok {
		return advisory.Record{}, fmt.Errorf("country %q: %w", c.Country, advisory.ErrUnresolvableCountry)
	}

	publishedAt, err := n.parseDate(c.DateText)
	if err != nil {
		return advisory.Record{}, err
	}

	region := CleanText(c.Region)
	summary := CleanText(c.Summary)
	risk := ResolveRiskLevel(c.RiskText, n.source.RiskVocab)

	rec := advisory.Record{
		SourceName:  n.source.Name,
		Country:     country,
		Region:      region,
		RiskLevel:   risk,
		Summary:     summary,
		PublishedAt: publishedAt,
		ScrapedAt:   n.clock.Now(),
		RawPayload:  c.RawText,
	}
	rec.Fingerprint = Fingerprint(rec)
	rec.ContentDigest = ContentDigest(rec)
	return rec, nil
}

func (n *Normalizer) parseDate(text string) (*time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		if n.source.RequireDate {
			return nil, fmt.Errorf("source %s: empty date: %w", n.source.Name, advisory.ErrMalformedDate)
		}
		return nil, nil
	}

	layouts := commonDateLayouts
	if n.source.DateLayout != "" {
		layouts = append([]string{n.source.DateLayout}, layouts...)
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, text); err == nil {
			ts = ts.UTC()
			return &ts, nil
		}
	}

	if n.source.RequireDate {
		return nil, fmt.Errorf("source %s: date %q: %w", n.source.Name, text, advisory.ErrMalformedDate)
	}
	// Sources with optional dates tolerate junk date text rather than losing
	// the whole advisory.
	return nil, nil
}

// Fingerprint computes the stable dedup key over the identity fields. Identity
// text is canonicalized first so incidental whitespace and case differences in
// re-scraped content yield the same fingerprint.
func Fingerprint(rec advisory.Record) string {
	return sha256.Join(
		canonicalKey(rec.SourceName),
		canonicalKey(rec.Country),
		canonicalKey(rec.Region),
		canonicalKey(rec.Summary),
	)
}

// ContentDigest hashes the mutable fields so the deduplicator and store can
// tell a content revision apart from an identical re-scrape.
func ContentDigest(rec advisory.Record) string {
	published := ""
	if rec.PublishedAt != nil {
		published = rec.PublishedAt.UTC().Format(time.RFC3339)
	}
	return sha256.Join(rec.Summary, string(rec.RiskLevel), published)
}

// CleanText collapses runs of whitespace and strips control characters while
// preserving the original casing and punctuation for display.
func CleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := true
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		b.WriteRune(r)
		prevSpace = false
	}
	return strings.TrimRight(b.String(), " ")
}

// canonicalKey lowercases and reduces text to letter/digit runs separated by
// single spaces, the identity form used for alias lookup and fingerprinting.
func canonicalKey(s string) string {
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevSpace = false
			continue
		}
		if !prevSpace {
			b.WriteByte(' ')
			prevSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}
