package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
)

// SmartravellerExtractor parses the Australian Smartraveller destinations
// index, rendered as destination cards with an advice-level banner.
type SmartravellerExtractor struct{}

// Kind implements Extractor.
func (e *SmartravellerExtractor) Kind() advisory.SourceKind { return advisory.KindSmartraveller }

// Extract implements Extractor.
func (e *SmartravellerExtractor) Extract(content advisory.RawContent) ([]advisory.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content.Body))
	if err != nil {
		return nil, fmt.Errorf("smartraveller: parse html: %w", err)
	}

	// Leaf cards only: the destinations view wraps the cards in containers
	// whose classes also contain "destination", so a selection that itself
	// holds another card is a wrapper, not an advisory.
	cards := doc.Find("[class*='destination'], article[class*='advisory']")
	cards = cards.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("[class*='destination'], article[class*='advisory']").Length() == 0
	})
	if cards.Length() == 0 {
		// Distinguish an empty list from a redesigned page: the destinations
		// view keeps its list container even when filtered to nothing.
		if doc.Find("[class*='view-destinations'], [data-component='destination-list']").Length() == 0 {
			return nil, structureErr(e.Kind(), "destination cards and list container missing")
		}
		return nil, nil
	}

	var candidates []advisory.Candidate
	cards.Each(func(_ int, card *goquery.Selection) {
		title := card.Find("h2 a, h3 a, h2, h3").First()
		country := strings.TrimSpace(title.Text())
		if country == "" {
			return
		}
		c := advisory.Candidate{
			Country:  country,
			RiskText: strings.TrimSpace(card.Find("[class*='advice-level'], [class*='level']").First().Text()),
			Summary:  strings.TrimSpace(card.Find("p").First().Text()),
			DateText: strings.TrimSpace(card.Find("time").First().AttrOr("datetime", "")),
		}
		if href, ok := card.Find("h2 a, h3 a").First().Attr("href"); ok {
			c.Link = absoluteLink("https://www.smartraveller.gov.au", href)
		}
		if c.Summary == "" {
			c.Summary = c.RiskText
		}
		if h, err := card.Html(); err == nil {
			c.RawText = strings.TrimSpace(h)
		}
		candidates = append(candidates, c)
	})
	return candidates, nil
}
