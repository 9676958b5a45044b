package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
)

// ReliefWebExtractor parses the ReliefWeb reports API response, the one
// structured (JSON) source in the default configuration.
type ReliefWebExtractor struct{}

type reliefWebResponse struct {
	Data []struct {
		Fields reliefWebFields `json:"fields"`
	} `json:"data"`
}

type reliefWebFields struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Country []struct {
		Name string `json:"name"`
	} `json:"country"`
	Date struct {
		Created string `json:"created"`
	} `json:"date"`
	URL string `json:"url"`
}

// Kind implements Extractor.
func (e *ReliefWebExtractor) Kind() advisory.SourceKind { return advisory.KindReliefWeb }

// Extract implements Extractor.
func (e *ReliefWebExtractor) Extract(content advisory.RawContent) ([]advisory.Candidate, error) {
	// An API response that fails to decode means the contract moved, not a
	// transient fetch problem: the fetch already succeeded with 2xx.
	var resp reliefWebResponse
	if err := json.Unmarshal(content.Body, &resp); err != nil {
		return nil, structureErr(e.Kind(), fmt.Sprintf("decode response: %v", err))
	}
	if resp.Data == nil {
		return nil, structureErr(e.Kind(), "data envelope missing")
	}

	var candidates []advisory.Candidate
	for _, item := range resp.Data {
		f := item.Fields
		if len(f.Country) == 0 {
			continue
		}
		summary := f.Body
		if summary == "" {
			summary = f.Title
		}
		raw, _ := json.Marshal(f)
		candidates = append(candidates, advisory.Candidate{
			Country:  f.Country[0].Name,
			RiskText: f.Title,
			Summary:  strings.TrimSpace(summary),
			DateText: f.Date.Created,
			Link:     f.URL,
			RawText:  string(raw),
		})
	}
	return candidates, nil
}
