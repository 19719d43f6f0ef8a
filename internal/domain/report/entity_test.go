package report_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EquityLens/internal/domain/report"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

func sampleText() string {
	return strings.Repeat("the quarterly revenue outlook remains constructive for this issuer ", 20)
}

func newSubmitted(t *testing.T) *report.Report {
	t.Helper()
	r, err := report.NewReport("Q3 outlook", "analyst-1", sampleText(), []string{"INFY.NS"}, []string{"india"})
	require.NoError(t, err)
	return r
}

func TestNewReport_Valid(t *testing.T) {
	t.Parallel()
	r := newSubmitted(t)

	assert.Equal(t, rtypes.StatusSubmitted, r.Status)
	assert.Equal(t, []string{"INFY.NS"}, r.Tickers)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, 0, r.LatestAssessmentVersion())

	events := r.Events()
	require.Len(t, events, 1)
	assert.Equal(t, report.EventTypeReportSubmitted, events[0].EventType())
	assert.Empty(t, r.Events(), "Events must drain the buffer")
}

func TestNewReport_Invalid(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		title   string
		analyst string
		text    string
	}{
		{"empty title", "  ", "a-1", sampleText()},
		{"empty analyst", "title", "", sampleText()},
		{"empty text", "title", "a-1", ""},
		{"too short", "title", "a-1", "only a few words here"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := report.NewReport(tc.title, common.AnalystID(tc.analyst), tc.text, nil, nil)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
		})
	}
}

func TestLifecycle_FullHappyPath(t *testing.T) {
	t.Parallel()
	r := newSubmitted(t)

	require.NoError(t, r.BeginAssessment())
	assert.Equal(t, rtypes.StatusAssessing, r.Status)

	require.NoError(t, r.CompleteAssessment(1))
	assert.Equal(t, rtypes.StatusAssessed, r.Status)
	assert.Equal(t, 1, r.LatestAssessmentVersion())

	// Reassessment bumps to v2 without touching v1.
	require.NoError(t, r.BeginAssessment())
	assert.Equal(t, rtypes.StatusReassessing, r.Status)
	require.NoError(t, r.CompleteAssessment(2))
	assert.Equal(t, 2, r.LatestAssessmentVersion())

	require.NoError(t, r.Archive())
	assert.Equal(t, rtypes.StatusArchived, r.Status)
	assert.True(t, r.IsTerminal())
}

func TestLifecycle_IllegalTransitions(t *testing.T) {
	t.Parallel()

	t.Run("complete without begin", func(t *testing.T) {
		t.Parallel()
		r := newSubmitted(t)
		err := r.CompleteAssessment(1)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeReportStateInvalid))
	})

	t.Run("archive before assessed", func(t *testing.T) {
		t.Parallel()
		r := newSubmitted(t)
		require.Error(t, r.Archive())
	})

	t.Run("no transitions out of retracted", func(t *testing.T) {
		t.Parallel()
		r := newSubmitted(t)
		require.NoError(t, r.Retract("withdrawn by analyst"))
		assert.True(t, r.IsTerminal())
		require.Error(t, r.BeginAssessment())
		require.Error(t, r.Archive())
	})

	t.Run("version must be successor", func(t *testing.T) {
		t.Parallel()
		r := newSubmitted(t)
		require.NoError(t, r.BeginAssessment())
		err := r.CompleteAssessment(3)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeReportStateInvalid))
	})
}

func TestLifecycle_RetractionDuringAssessment(t *testing.T) {
	t.Parallel()
	r := newSubmitted(t)
	require.NoError(t, r.BeginAssessment())

	require.NoError(t, r.Retract("material error found"))
	assert.Equal(t, rtypes.StatusRetracted, r.Status)

	// The in-flight run must not be able to complete afterwards.
	err := r.CompleteAssessment(1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeReportStateInvalid))
}

func TestLifecycle_VersionBumpsOnMutation(t *testing.T) {
	t.Parallel()
	r := newSubmitted(t)
	v0 := r.Version
	require.NoError(t, r.BeginAssessment())
	assert.Equal(t, v0+1, r.Version)
}

func TestFromDTO_RoundTrip(t *testing.T) {
	t.Parallel()
	r := newSubmitted(t)
	require.NoError(t, r.BeginAssessment())
	require.NoError(t, r.CompleteAssessment(1))

	rehydrated := report.FromDTO(r.ToDTO(), r.LatestAssessmentVersion())
	assert.Equal(t, r.ID, rehydrated.ID)
	assert.Equal(t, rtypes.StatusAssessed, rehydrated.Status)
	assert.Equal(t, 1, rehydrated.LatestAssessmentVersion())
	assert.Empty(t, rehydrated.Events())

	// Lifecycle continues correctly from the rehydrated aggregate.
	require.NoError(t, rehydrated.BeginAssessment())
	require.NoError(t, rehydrated.CompleteAssessment(2))
}
