// Package quality implements the multi-dimensional quality scorer.  Seven
// dimensions are graded on [0, 100]; each is either available with a score or
// explicitly unavailable with a reason, and the composite is computed by the
// Assessment aggregate with proportional weight renormalisation over the
// available subset.
package quality

import (
	"regexp"
	"strings"
)

// Dimension names.  They are the keys of the configured weight map; config
// validation rejects weight maps whose keys do not cover the scorer's output.
const (
	DimContentDepth    = "content_depth"
	DimFactualAccuracy = "factual_accuracy"
	DimPredictivePower = "predictive_power"
	DimBias            = "bias"
	DimOriginality     = "originality"
	DimRiskDisclosure  = "risk_disclosure"
	DimTransparency    = "transparency"
)

// AllDimensions lists every dimension the scorer produces, in output order.
var AllDimensions = []string{
	DimContentDepth,
	DimFactualAccuracy,
	DimPredictivePower,
	DimBias,
	DimOriginality,
	DimRiskDisclosure,
	DimTransparency,
}

var (
	reNumber   = regexp.MustCompile(`\b\d+(?:[.,]\d+)?%?\b`)
	reForecast = regexp.MustCompile(`(?i)\b(?:forecast|project(?:ed|ion)?|estimate|expect(?:ed)?|guidance|outlook|target)\b`)
	reDated    = regexp.MustCompile(`(?i)\b(?:20\d{2}|q[1-4]|fy ?\d{2,4}|h[12])\b`)
	reRisk     = regexp.MustCompile(`(?i)\b(?:risk|downside|headwind|uncertain|volatil|adverse)\w*\b`)
	reSource   = regexp.MustCompile(`(?i)\b(?:according to|source|sourced from|company filings?|annual report|management (?:call|commentary)|channel checks?|our model|methodology)\b`)
)

var positiveWords = map[string]bool{
	"strong": true, "growth": true, "beat": true, "outperform": true,
	"upside": true, "robust": true, "positive": true, "improve": true,
	"improving": true, "expansion": true, "accelerate": true, "record": true,
	"favourable": true, "favorable": true, "bullish": true,
}

var negativeWords = map[string]bool{
	"weak": true, "decline": true, "miss": true, "underperform": true,
	"downside": true, "soft": true, "negative": true, "deteriorate": true,
	"contraction": true, "slowdown": true, "pressure": true, "bearish": true,
	"headwind": true, "risk": true, "risks": true,
}

// contentDepthScore rewards substantive, quantified analysis: document
// length up to a saturation point plus numeric density.
func contentDepthScore(text string, wordCount int) float64 {
	lengthScore := float64(wordCount) / 800 * 60
	if lengthScore > 60 {
		lengthScore = 60
	}
	numbers := len(reNumber.FindAllString(text, -1))
	density := float64(numbers) / float64(wordCount) * 1000 // numbers per 1000 words
	densityScore := density / 25 * 40
	if densityScore > 40 {
		densityScore = 40
	}
	return lengthScore + densityScore
}

// predictivePowerScore rewards explicit, dated, quantified forward-looking
// statements.
func predictivePowerScore(text string) float64 {
	forecasts := len(reForecast.FindAllString(text, -1))
	if forecasts == 0 {
		return 0
	}
	score := 40.0
	if reDated.MatchString(text) {
		score += 30
	}
	if reNumber.MatchString(text) {
		score += 30
	}
	return score
}

// biasScore rewards balanced language: a report that is all positives (or
// all negatives) scores low, a mixed assessment scores high.
func biasScore(text string) float64 {
	var pos, neg int
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?()\"'")
		if positiveWords[tok] {
			pos++
		}
		if negativeWords[tok] {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return 50 // no sentiment language either way
	}
	minority := pos
	if neg < minority {
		minority = neg
	}
	// Perfect balance → 100; fully one-sided → 0.
	return float64(minority) / (float64(total) / 2) * 100
}

// riskDisclosureScore grades the extent of risk discussion.
func riskDisclosureScore(text string, wordCount int) float64 {
	mentions := len(reRisk.FindAllString(text, -1))
	if mentions == 0 {
		return 0
	}
	perThousand := float64(mentions) / float64(wordCount) * 1000
	score := perThousand / 8 * 100
	if score > 100 {
		score = 100
	}
	return score
}

// transparencyScore grades sourcing and methodology references.
func transparencyScore(text string) float64 {
	refs := len(reSource.FindAllString(text, -1))
	score := float64(refs) * 25
	if score > 100 {
		score = 100
	}
	return score
}
