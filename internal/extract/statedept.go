package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
)

// StateDeptExtractor parses the U.S. Department of State travel advisory
// list, a table whose rows carry the country link, the advisory level text
// and the last-updated date.
type StateDeptExtractor struct{}

// Kind implements Extractor.
func (e *StateDeptExtractor) Kind() advisory.SourceKind { return advisory.KindStateDept }

// Extract implements Extractor.
func (e *StateDeptExtractor) Extract(content advisory.RawContent) ([]advisory.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content.Body))
	if err != nil {
		return nil, fmt.Errorf("statedept: parse html: %w", err)
	}

	table := doc.Find("table").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("a[href*='traveladvisories']").Length() > 0 ||
			strings.Contains(strings.ToLower(s.Find("th").Text()), "advisory")
	})
	if table.Length() == 0 {
		return nil, structureErr(e.Kind(), "advisory table missing")
	}

	var candidates []advisory.Candidate
	table.First().Find("tbody tr, tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		country := strings.TrimSpace(cells.Eq(0).Text())
		if country == "" {
			return
		}
		c := advisory.Candidate{
			Country:  country,
			RiskText: strings.TrimSpace(cells.Eq(1).Text()),
		}
		if cells.Length() > 2 {
			c.DateText = strings.TrimSpace(cells.Eq(2).Text())
		}
		if href, ok := cells.Eq(0).Find("a").Attr("href"); ok {
			c.Link = absoluteLink("https://travel.state.gov", href)
		}
		// The list page carries the level wording as the only summary text.
		c.Summary = c.RiskText
		if h, err := row.Html(); err == nil {
			c.RawText = strings.TrimSpace(h)
		}
		candidates = append(candidates, c)
	})
	return candidates, nil
}

func absoluteLink(base, href string) string {
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return base + "/" + strings.TrimPrefix(href, "/")
}
