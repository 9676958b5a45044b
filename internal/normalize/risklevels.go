package normalize

import (
	"strings"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
)

// defaultRiskVocab maps substrings of source severity wording to the canonical
// enumeration. Entries are matched longest-first against the lowercased text,
// so "exercise increased caution" wins over "caution". Source configs can
// layer their own vocabulary on top.
var defaultRiskVocab = map[string]advisory.RiskLevel{
	"level 1":                    advisory.RiskLow,
	"level 2":                    advisory.RiskMedium,
	"level 3":                    advisory.RiskHigh,
	"level 4":                    advisory.RiskCritical,
	"exercise normal":            advisory.RiskLow,
	"exercise normal safety":     advisory.RiskLow,
	"exercise increased caution": advisory.RiskMedium,
	"exercise increased":         advisory.RiskMedium,
	"exercise a high degree":     advisory.RiskMedium,
	"reconsider travel":          advisory.RiskHigh,
	"reconsider":                 advisory.RiskHigh,
	"reconsider your need":       advisory.RiskHigh,
	"do not travel":              advisory.RiskCritical,
	"avoid all travel":           advisory.RiskCritical,
	"avoid all but essential":    advisory.RiskHigh,
	"avoid":                      advisory.RiskCritical,
	"extreme":                    advisory.RiskCritical,
	"severe":                     advisory.RiskCritical,
	"critical":                   advisory.RiskCritical,
	"high":                       advisory.RiskHigh,
	"substantial":                advisory.RiskHigh,
	"elevated":                   advisory.RiskMedium,
	"moderate":                   advisory.RiskMedium,
	"medium":                     advisory.RiskMedium,
	"increased caution":          advisory.RiskMedium,
	"normal precautions":         advisory.RiskLow,
	"low":                        advisory.RiskLow,
	"minimal":                    advisory.RiskLow,
}

// ResolveRiskLevel maps free-text severity wording to the enumeration.
// Source-specific vocabulary is consulted before the default table. Text with
// no mapping resolves to RiskUnknown; this is deliberately never an error.
func ResolveRiskLevel(raw string, sourceVocab map[string]advisory.RiskLevel) advisory.RiskLevel {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return advisory.RiskUnknown
	}
	if level, ok := matchVocab(text, sourceVocab); ok {
		return level
	}
	if level, ok := matchVocab(text, defaultRiskVocab); ok {
		return level
	}
	return advisory.RiskUnknown
}

func matchVocab(text string, vocab map[string]advisory.RiskLevel) (advisory.RiskLevel, bool) {
	var (
		best    advisory.RiskLevel
		bestLen int
	)
	for phrase, level := range vocab {
		if len(phrase) > bestLen && strings.Contains(text, strings.ToLower(phrase)) {
			best = level
			bestLen = len(phrase)
		}
	}
	if bestLen == 0 {
		return advisory.RiskUnknown, false
	}
	return best, true
}
