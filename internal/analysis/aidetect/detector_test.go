package aidetect_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EquityLens/internal/analysis/aidetect"
	"github.com/turtacn/EquityLens/pkg/errors"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

func defaultThresholds() aidetect.Thresholds {
	return aidetect.Thresholds{Uncertain: 0.4, Likely: 0.7}
}

func newDetector(t *testing.T) *aidetect.Detector {
	t.Helper()
	d, err := aidetect.NewDetector(defaultThresholds(), nil)
	require.NoError(t, err)
	return d
}

// humanStyleText varies sentence length and vocabulary the way analyst prose
// does.
func humanStyleText() string {
	return `Margins surprised us. Against a backdrop of softening discretionary spend, the
company delivered a nine percent constant-currency expansion in its digital
services franchise, comfortably ahead of our estimate. Pricing held. Attrition,
long the bugbear of the sector, fell below thirteen percent for the first time
since the pandemic, and utilisation crept towards historical peaks. We remain
wary of vendor consolidation in banking, where two of the top five clients have
signalled budget cuts. Deal tenure is lengthening too. Still, the order book
implies visible revenue near four billion dollars, and management's capital
allocation, a seventy-five percent payout alongside selective tuck-ins,
strikes us as shareholder friendly rather than extravagant.`
}

// machineStyleText is uniform, repetitive, and built from high-frequency
// vocabulary.
func machineStyleText() string {
	sentence := "The company is expected to continue strong growth and the overall market performance remains significant for the year. "
	return strings.Repeat(sentence, 12)
}

func TestDetect_Deterministic(t *testing.T) {
	t.Parallel()
	d := newDetector(t)

	first, err := d.Detect(machineStyleText())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := d.Detect(machineStyleText())
		require.NoError(t, err)
		assert.Equal(t, first.Probability, again.Probability, "identical input must score identically")
		assert.Equal(t, first.Label, again.Label)
		assert.Equal(t, first.Features, again.Features)
	}
}

func TestDetect_SeparatesStyles(t *testing.T) {
	t.Parallel()
	d := newDetector(t)

	human, err := d.Detect(humanStyleText())
	require.NoError(t, err)
	machine, err := d.Detect(machineStyleText())
	require.NoError(t, err)

	assert.Less(t, human.Probability, machine.Probability,
		"uniform repetitive text must score higher than varied prose")
	assert.Equal(t, rtypes.AuthorshipAILikely, machine.Label)
	assert.NotEqual(t, rtypes.AuthorshipAILikely, human.Label)

	assert.GreaterOrEqual(t, human.Probability, 0.0)
	assert.LessOrEqual(t, machine.Probability, 1.0)
}

func TestDetect_FeaturesExposed(t *testing.T) {
	t.Parallel()
	d := newDetector(t)

	res, err := d.Detect(machineStyleText())
	require.NoError(t, err)
	for _, name := range []string{
		aidetect.FeatureBurstiness,
		aidetect.FeatureVocabRichness,
		aidetect.FeaturePerplexityProxy,
		aidetect.FeatureRepetition,
	} {
		val, ok := res.Features[name]
		require.True(t, ok, "feature %s missing", name)
		assert.GreaterOrEqual(t, val, 0.0)
		assert.LessOrEqual(t, val, 1.0)
	}
}

func TestDetect_TooShort(t *testing.T) {
	t.Parallel()
	d := newDetector(t)

	_, err := d.Detect("far too short to analyse")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDetectorInputTooShort))
}

func TestDetect_ConfidenceAtBandEdges(t *testing.T) {
	t.Parallel()
	d := newDetector(t)

	res, err := d.Detect(machineStyleText())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}

func TestNewDetector_RejectsBadThresholds(t *testing.T) {
	t.Parallel()
	cases := []aidetect.Thresholds{
		{Uncertain: 0, Likely: 0.7},
		{Uncertain: 0.7, Likely: 0.4},
		{Uncertain: 0.4, Likely: 1.2},
	}
	for _, th := range cases {
		_, err := aidetect.NewDetector(th, nil)
		assert.True(t, errors.IsCode(err, errors.ErrCodeThresholdsInvalid), "thresholds %+v", th)
	}
}
