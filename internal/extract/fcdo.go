package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
)

// FCDOExtractor parses the UK Foreign, Commonwealth & Development Office
// country index on gov.uk: a list of country links with advisory wording in
// the surrounding list item.
type FCDOExtractor struct{}

// Kind implements Extractor.
func (e *FCDOExtractor) Kind() advisory.SourceKind { return advisory.KindFCDO }

// Extract implements Extractor.
func (e *FCDOExtractor) Extract(content advisory.RawContent) ([]advisory.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content.Body))
	if err != nil {
		return nil, fmt.Errorf("fcdo: parse html: %w", err)
	}

	// gov.uk pages always render the main content landmark; losing it means
	// the page template changed, not that there are no advisories.
	main := doc.Find("main, #content, .govuk-width-container")
	if main.Length() == 0 {
		return nil, structureErr(e.Kind(), "gov.uk content landmark missing")
	}

	var candidates []advisory.Candidate
	main.Find("a[href*='/foreign-travel-advice/']").Each(func(_ int, link *goquery.Selection) {
		country := strings.TrimSpace(link.Text())
		if country == "" {
			return
		}
		href, _ := link.Attr("href")

		c := advisory.Candidate{
			Country: country,
			Link:    absoluteLink("https://www.gov.uk", href),
		}

		parent := link.ParentsFiltered("li, div, article").First()
		if parent.Length() > 0 {
			if risk := parent.Find("span.advice-level, strong").First(); risk.Length() > 0 {
				c.RiskText = strings.TrimSpace(risk.Text())
			}
			var paras []string
			parent.Find("p").EachWithBreak(func(i int, p *goquery.Selection) bool {
				paras = append(paras, strings.TrimSpace(p.Text()))
				return i < 2
			})
			c.Summary = strings.TrimSpace(strings.Join(paras, " "))
			if h, err := parent.Html(); err == nil {
				c.RawText = strings.TrimSpace(h)
			}
		}
		if c.Summary == "" {
			c.Summary = c.RiskText
		}
		if c.Summary == "" {
			c.Summary = country
		}
		candidates = append(candidates, c)
	})
	return candidates, nil
}
