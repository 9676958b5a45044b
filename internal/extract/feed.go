package extract

import (
	"bytes"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
)

// FeedExtractor parses RSS/Atom alert feeds. Government alert feeds title
// their items "Country: headline" or "Country - headline"; the country half
// is the candidate's country and the rest stays in the summary.
type FeedExtractor struct{}

// Kind implements Extractor.
func (e *FeedExtractor) Kind() advisory.SourceKind { return advisory.KindFeed }

// Extract implements Extractor.
func (e *FeedExtractor) Extract(content advisory.RawContent) ([]advisory.Candidate, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(content.Body))
	if err != nil {
		// A feed that no longer parses as XML is structural drift, the same
		// class of failure as a redesigned HTML page.
		return nil, structureErr(e.Kind(), err.Error())
	}

	var candidates []advisory.Candidate
	for _, item := range feed.Items {
		country, headline := splitFeedTitle(item.Title)
		if country == "" {
			continue
		}
		summary := strings.TrimSpace(item.Description)
		if summary == "" {
			summary = headline
		}
		c := advisory.Candidate{
			Country:  country,
			RiskText: headline,
			Summary:  summary,
			Link:     item.Link,
			RawText:  item.Title + "\n" + item.Description,
		}
		if item.PublishedParsed != nil {
			c.DateText = item.PublishedParsed.UTC().Format("2006-01-02")
		} else {
			c.DateText = item.Published
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func splitFeedTitle(title string) (country, rest string) {
	title = strings.TrimSpace(title)
	for _, sep := range []string{":", " - ", "–"} {
		if idx := strings.Index(title, sep); idx > 0 {
			return strings.TrimSpace(title[:idx]), strings.TrimSpace(title[idx+len(sep):])
		}
	}
	return title, ""
}
