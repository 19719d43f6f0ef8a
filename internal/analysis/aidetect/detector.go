package aidetect

import (
	"fmt"
	"strings"

	"github.com/turtacn/EquityLens/internal/domain/report"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

// minTokens is the smallest input the detector accepts.  Below this the
// stylometric signals are dominated by noise.
const minTokens = 40

// Calibrated feature weights.  They sum to 1 so the combined probability
// stays in [0, 1].
const (
	weightBurstiness = 0.30
	weightVocab      = 0.20
	weightPerplexity = 0.25
	weightRepetition = 0.25
)

// Thresholds splits the probability into the three label bands:
// p < Uncertain → human, Uncertain <= p < Likely → uncertain,
// p >= Likely → ai_likely.
type Thresholds struct {
	Uncertain float64
	Likely    float64
}

// Validate rejects threshold pairs that do not form 0 < Uncertain < Likely <= 1.
func (t Thresholds) Validate() error {
	if t.Uncertain <= 0 || t.Likely <= t.Uncertain || t.Likely > 1 {
		return errors.New(errors.ErrCodeThresholdsInvalid,
			fmt.Sprintf("need 0 < uncertain (%.2f) < likely (%.2f) <= 1", t.Uncertain, t.Likely))
	}
	return nil
}

// Detector is the deterministic authorship classifier.  Safe for concurrent
// use.
type Detector struct {
	thresholds Thresholds
	log        logging.Logger
}

// NewDetector validates the thresholds and constructs the detector.
func NewDetector(thresholds Thresholds, log logging.Logger) (*Detector, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Detector{thresholds: thresholds, log: log}, nil
}

// Detect analyses the text and returns the probability, confidence, label,
// and raw features.  Texts shorter than minTokens return
// ErrCodeDetectorInputTooShort; the aggregator degrades that run's authorship
// dimension rather than failing the assessment.
func (d *Detector) Detect(text string) (report.AIDetectionResult, error) {
	tokenCount := len(wordPattern.FindAllString(strings.ToLower(text), -1))
	if tokenCount < minTokens {
		return report.AIDetectionResult{}, errors.New(errors.ErrCodeDetectorInputTooShort,
			fmt.Sprintf("authorship analysis needs at least %d words, got %d", minTokens, tokenCount))
	}

	f := extractFeatures(text)
	probability := weightBurstiness*f.Burstiness +
		weightVocab*f.VocabRichness +
		weightPerplexity*f.PerplexityProxy +
		weightRepetition*f.Repetition

	label := d.label(probability)
	confidence := d.confidence(probability)

	d.log.Debug("authorship analysis complete",
		logging.Float64("probability", probability),
		logging.String("label", string(label)),
	)

	return report.AIDetectionResult{
		Probability: probability,
		Confidence:  confidence,
		Label:       label,
		Features:    f.asMap(),
	}, nil
}

func (d *Detector) label(p float64) rtypes.AuthorshipLabel {
	switch {
	case p >= d.thresholds.Likely:
		return rtypes.AuthorshipAILikely
	case p >= d.thresholds.Uncertain:
		return rtypes.AuthorshipUncertain
	default:
		return rtypes.AuthorshipHuman
	}
}

// confidence scales the distance from the nearest label boundary to [0, 1]
// within the band, so a probability sitting right on a threshold reports
// confidence 0 and the band midpoint reports 1.
func (d *Detector) confidence(p float64) float64 {
	var lo, hi float64
	switch {
	case p >= d.thresholds.Likely:
		lo, hi = d.thresholds.Likely, 1
	case p >= d.thresholds.Uncertain:
		lo, hi = d.thresholds.Uncertain, d.thresholds.Likely
	default:
		lo, hi = 0, d.thresholds.Uncertain
	}
	if hi == lo {
		return 0
	}
	dist := p - lo
	if hi-p < dist {
		dist = hi - p
	}
	return clamp01(dist / ((hi - lo) / 2))
}
