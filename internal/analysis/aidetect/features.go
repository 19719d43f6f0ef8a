// Package aidetect implements the deterministic AI-authorship detector.  It
// derives stylometric features from the text, combines them with calibrated
// weights into a probability, and labels the result via two configurable
// thresholds.  The same text always produces the same probability; there is
// no model call and no randomness.
package aidetect

import (
	"math"
	"regexp"
	"strings"
)

// Feature names, exposed on the result for auditability.
const (
	FeatureBurstiness      = "burstiness"
	FeatureVocabRichness   = "vocab_richness"
	FeaturePerplexityProxy = "perplexity_proxy"
	FeatureRepetition      = "repetition"
)

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

var wordPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// commonWords approximates a unigram frequency head: the most frequent
// English function and business words.  The perplexity proxy measures how
// much of the text is drawn from this head; machine-generated text leans on
// it more heavily than human analyst prose.
var commonWords = map[string]bool{
	"the": true, "of": true, "and": true, "a": true, "to": true, "in": true,
	"is": true, "that": true, "it": true, "for": true, "on": true, "with": true,
	"as": true, "was": true, "are": true, "be": true, "this": true, "by": true,
	"an": true, "at": true, "from": true, "or": true, "which": true, "but": true,
	"we": true, "has": true, "have": true, "its": true, "will": true, "can": true,
	"also": true, "more": true, "their": true, "these": true, "our": true,
	"expected": true, "growth": true, "company": true, "market": true,
	"revenue": true, "quarter": true, "year": true, "performance": true,
	"significant": true, "strong": true, "continue": true, "remains": true,
	"overall": true, "however": true, "additionally": true, "furthermore": true,
	"moreover": true, "important": true, "key": true, "potential": true,
}

// features holds the raw signals, each scaled to [0, 1] where 1 points
// towards machine generation.
type features struct {
	Burstiness      float64
	VocabRichness   float64
	PerplexityProxy float64
	Repetition      float64
}

func (f features) asMap() map[string]float64 {
	return map[string]float64{
		FeatureBurstiness:      f.Burstiness,
		FeatureVocabRichness:   f.VocabRichness,
		FeaturePerplexityProxy: f.PerplexityProxy,
		FeatureRepetition:      f.Repetition,
	}
}

// extractFeatures computes all four signals over the tokenised text.
func extractFeatures(text string) features {
	tokens := wordPattern.FindAllString(strings.ToLower(text), -1)
	return features{
		Burstiness:      burstinessSignal(text),
		VocabRichness:   vocabSignal(tokens),
		PerplexityProxy: perplexitySignal(tokens),
		Repetition:      repetitionSignal(tokens),
	}
}

// burstinessSignal measures the variation of sentence lengths.  Human prose
// alternates short and long sentences (high coefficient of variation);
// machine text is strikingly uniform.  The signal is 1 at perfect uniformity
// and decays as variation grows.
func burstinessSignal(text string) float64 {
	var lengths []float64
	for _, s := range sentenceSplit.Split(text, -1) {
		if n := len(strings.Fields(s)); n > 0 {
			lengths = append(lengths, float64(n))
		}
	}
	if len(lengths) < 2 {
		return 0.5 // not enough sentences to tell
	}

	var mean float64
	for _, l := range lengths {
		mean += l
	}
	mean /= float64(len(lengths))

	var variance float64
	for _, l := range lengths {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(lengths))

	cv := math.Sqrt(variance) / mean
	// Human analyst prose typically shows cv around 0.5-0.8; below ~0.25 the
	// rhythm is suspiciously even.
	return clamp01(1 - cv/0.5)
}

// vocabSignal measures lexical diversity with a length-corrected type-token
// ratio (Guiraud's R = types / sqrt(tokens)).  Lower diversity points to
// machine generation.
func vocabSignal(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0.5
	}
	types := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		types[t] = true
	}
	r := float64(len(types)) / math.Sqrt(float64(len(tokens)))
	// R around 10+ is rich human vocabulary for report-length text; below ~4
	// the vocabulary is flat.
	return clamp01(1 - (r-2)/8)
}

// perplexitySignal measures how much of the text is drawn from the
// high-frequency head of the language.  A high common-word share is a proxy
// for low perplexity under a generic language model.
func perplexitySignal(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0.5
	}
	var common int
	for _, t := range tokens {
		if commonWords[t] {
			common++
		}
	}
	share := float64(common) / float64(len(tokens))
	// Human analyst prose sits near 0.35-0.45 common-word share; push the
	// signal up as the share passes that band.
	return clamp01((share - 0.30) / 0.35)
}

// repetitionSignal measures the fraction of duplicated word 4-grams.
func repetitionSignal(tokens []string) float64 {
	const n = 4
	if len(tokens) < n*2 {
		return 0
	}
	seen := make(map[string]bool)
	var dupes, total int
	for i := 0; i+n <= len(tokens); i++ {
		gram := strings.Join(tokens[i:i+n], " ")
		if seen[gram] {
			dupes++
		}
		seen[gram] = true
		total++
	}
	// A handful of repeated phrases is normal; scale so that ~20% duplicated
	// grams saturates the signal.
	return clamp01(float64(dupes) / float64(total) / 0.2)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
