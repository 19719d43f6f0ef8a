package assessment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EquityLens/internal/analysis/aidetect"
	"github.com/turtacn/EquityLens/internal/analysis/compliance"
	"github.com/turtacn/EquityLens/internal/analysis/ingest"
	"github.com/turtacn/EquityLens/internal/analysis/quality"
	"github.com/turtacn/EquityLens/internal/analysis/similarity"
	"github.com/turtacn/EquityLens/internal/application/assessment"
	"github.com/turtacn/EquityLens/internal/config"
	"github.com/turtacn/EquityLens/internal/domain/report"
	"github.com/turtacn/EquityLens/internal/testutil"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

const analystID = common.AnalystID("analyst-7")

// cleanReport satisfies every compliance rule, exceeds the submission word
// floor, and carries one resolvable ticker.
const cleanReport = `We initiate coverage of INFY.NS with a BUY and a target price of 1850 based on
a DCF valuation cross-checked against an EV/EBITDA multiple. We forecast
revenue growth of 12 percent in FY2026 and margin expansion of 80 basis
points. Against that, the slowdown in banking budgets is a clear headwind, and
key risks include client concentration, wage pressure, and currency
volatility. Our model assumes a 9 percent discount rate; the methodology and
company filings underpinning it are detailed in the appendix. Analyst
certification: the analyst does not hold any position in the covered security.
According to management commentary, deal wins reached 2400 million dollars in
the quarter, a record for the franchise.`

// openMarketData resolves every symbol.  An optional hook runs on the first
// quote call, letting tests interleave service operations with an in-flight
// assessment.
type openMarketData struct {
	mu   sync.Mutex
	hook func()
}

func (m *openMarketData) Quote(_ context.Context, symbol string) (quality.Quote, error) {
	m.mu.Lock()
	hook := m.hook
	m.hook = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return quality.Quote{Symbol: symbol, Price: 1500, Currency: "INR"}, nil
}

type harness struct {
	svc     assessment.Service
	reports *testutil.MemoryReportRepository
	history *testutil.MemoryAssessmentRepository
	matches *testutil.MemoryMatchRepository
	queue   *testutil.RecordingQueue
	pub     *testutil.RecordingPublisher
	cache   *testutil.MemoryCache
	market  *openMarketData
}

func newHarness(t *testing.T, withQueue bool) *harness {
	t.Helper()

	h := &harness{
		reports: testutil.NewMemoryReportRepository(),
		history: testutil.NewMemoryAssessmentRepository(),
		matches: testutil.NewMemoryMatchRepository(),
		pub:     &testutil.RecordingPublisher{},
		cache:   testutil.NewMemoryCache(),
		market:  &openMarketData{},
	}
	if withQueue {
		h.queue = &testutil.RecordingQueue{}
	}

	embedder := similarity.NewLexicalEmbedder()
	analyzer, err := similarity.NewAnalyzer(similarity.Deps{
		Embedder:      embedder,
		Index:         similarity.NewMemoryIndex(embedder.Dimension()),
		Fallback:      similarity.NewLexicalEmbedder(),
		FallbackIndex: similarity.NewMemoryIndex(embedder.Dimension()),
		Texts:         assessment.NewReportTexts(h.reports),
	}, similarity.Config{Threshold: 0.85, TopK: 10, SpanWindowSize: 50})
	require.NoError(t, err)

	scorer, err := quality.NewScorer(config.DefaultQualityWeights(), h.market, nil)
	require.NoError(t, err)
	detector, err := aidetect.NewDetector(aidetect.Thresholds{Uncertain: 0.4, Likely: 0.7}, nil)
	require.NoError(t, err)

	runner, err := assessment.NewRunner(assessment.Components{
		Similarity: analyzer,
		Quality:    scorer,
		Detector:   detector,
		Compliance: compliance.NewAssessor(nil),
	}, 5*time.Second, nil, nil)
	require.NoError(t, err)

	var queue assessment.Queue
	if h.queue != nil {
		queue = h.queue
	}
	svc, err := assessment.NewService(assessment.Deps{
		Reports:     h.reports,
		Assessments: h.history,
		Matches:     h.matches,
		Normalizer:  ingest.NewNormalizer(nil),
		Runner:      runner,
		Queue:       queue,
		Publisher:   h.pub,
		Cache:       h.cache,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) submit(t *testing.T, title, text string) rtypes.ReportDTO {
	t.Helper()
	dto, err := h.svc.SubmitReport(context.Background(), assessment.SubmitInput{
		Title:     title,
		AnalystID: analystID,
		Text:      text,
	})
	require.NoError(t, err)
	return dto
}

func TestSubmitReport_InlineAssessment(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	dto := h.submit(t, "Infosys initiation", cleanReport)
	assert.Equal(t, rtypes.StatusAssessed, dto.Status)
	assert.Equal(t, []string{"INFY.NS"}, dto.Tickers)

	asmt, err := h.svc.GetAssessment(context.Background(), dto.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, asmt.Version)
	assert.Greater(t, asmt.OverallScore, 0.0)
	assert.Zero(t, asmt.DegradedCount, "clean run must not degrade: %v", asmt.DegradedDimensions)
	assert.False(t, asmt.Similarity.PlagiarismSuspected)
	assert.NotEmpty(t, asmt.Narrative)
	assert.Len(t, asmt.Dimensions, 7)

	assert.Equal(t, []string{
		report.EventTypeReportSubmitted,
		report.EventTypeAssessmentStarted,
		report.EventTypeAssessmentCompleted,
	}, h.pub.EventTypes())
}

func TestSubmitReport_Queued(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)

	dto := h.submit(t, "Infosys initiation", cleanReport)
	assert.Equal(t, rtypes.StatusSubmitted, dto.Status)

	require.Len(t, h.queue.Entries, 1)
	assert.Equal(t, dto.ID, h.queue.Entries[0].ReportID)
	assert.False(t, h.queue.Entries[0].Reassess)

	_, err := h.svc.GetAssessment(context.Background(), dto.ID, 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAssessmentNotFound))
}

func TestSubmitReport_Validation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	cases := map[string]assessment.SubmitInput{
		"empty text":    {Title: "t", AnalystID: analystID, Text: "   "},
		"too short":     {Title: "t", AnalystID: analystID, Text: "barely a dozen words of content here, far below the floor"},
		"missing title": {Title: " ", AnalystID: analystID, Text: cleanReport},
		"no analyst":    {Title: "t", Text: cleanReport},
	}
	for name, input := range cases {
		input := input
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := h.svc.SubmitReport(context.Background(), input)
			assert.True(t, errors.IsCode(err, errors.ErrCodeValidation), "got %v", err)
		})
	}
}

func TestRunAssessment_FlagsNearDuplicate(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	original := h.submit(t, "original", cleanReport)
	copied := h.submit(t, "copied", cleanReport+" A closing remark was appended to this version.")

	asmt, err := h.svc.GetAssessment(context.Background(), copied.ID, 0)
	require.NoError(t, err)
	assert.True(t, asmt.Similarity.PlagiarismSuspected)
	require.NotEmpty(t, asmt.Similarity.Matches)

	match := asmt.Similarity.Matches[0]
	assert.LessOrEqual(t, string(match.ReportID), string(match.OtherReportID), "pair must be in canonical order")
	assert.GreaterOrEqual(t, match.Score, 0.85)

	stored, err := h.matches.FindBetween(context.Background(), original.ID, copied.ID)
	require.NoError(t, err)
	require.NotNil(t, stored, "above-threshold pair must be persisted")
	assert.InDelta(t, match.Score, stored.Score, 1e-9)
}

func TestGetAssessment_MutualMatchVisibleFromBothSides(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	// The original is assessed against an empty corpus, so its own run
	// records no matches.  The near-duplicate's run stores the canonical
	// pair; the original's assessment view must surface it anyway.
	original := h.submit(t, "original", cleanReport)
	copied := h.submit(t, "copied", cleanReport+" A closing remark was appended to this version.")

	for _, id := range []common.ID{original.ID, copied.ID} {
		asmt, err := h.svc.GetAssessment(context.Background(), id, 0)
		require.NoError(t, err)
		assert.True(t, asmt.Similarity.PlagiarismSuspected, "report %s must see the pair", id)
		require.NotEmpty(t, asmt.Similarity.Matches, "report %s must see the pair", id)

		match := asmt.Similarity.Matches[0]
		assert.GreaterOrEqual(t, match.Score, 0.85)
		assert.InDelta(t, match.Score, asmt.Similarity.MaxScore, 1e-9)
		other := match.OtherReportID
		if id == match.OtherReportID {
			other = match.ReportID
		}
		if id == original.ID {
			assert.Equal(t, copied.ID, other)
		} else {
			assert.Equal(t, original.ID, other)
		}
	}

	// The fold also applies to cached and explicit-version reads.
	cached, err := h.svc.GetAssessment(context.Background(), original.ID, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, cached.Similarity.Matches)

	v1, err := h.svc.GetAssessment(context.Background(), original.ID, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, v1.Similarity.Matches)
}

func TestSimilarityMatches_RetentionArchivesWithoutDeleting(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	original := h.submit(t, "original", cleanReport)
	copied := h.submit(t, "copied", cleanReport+" A closing remark was appended to this version.")

	archived, err := h.matches.ArchiveOlderThan(context.Background(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, archived)
	assert.Equal(t, 1, h.matches.ArchivedCount(), "pair must be flagged, not destroyed")

	// Archived pairs leave the read paths.
	stored, err := h.matches.FindBetween(context.Background(), original.ID, copied.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	asmt, err := h.svc.GetAssessment(context.Background(), original.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, asmt.Similarity.Matches)

	// A second sweep finds nothing left to flag.
	archived, err = h.matches.ArchiveOlderThan(context.Background(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, archived)

	// Re-detection revives the pair.
	_, err = h.svc.Reassess(context.Background(), copied.ID)
	require.NoError(t, err)
	stored, err = h.matches.FindBetween(context.Background(), original.ID, copied.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestReassess(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	dto := h.submit(t, "Infosys initiation", cleanReport)

	again, err := h.svc.Reassess(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, rtypes.StatusAssessed, again.Status)

	history, err := h.svc.GetHistory(context.Background(), dto.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Version)
	assert.Equal(t, 2, history[1].Version)

	latest, err := h.svc.GetAssessment(context.Background(), dto.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
}

func TestReassess_RequiresAssessedState(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)

	dto := h.submit(t, "queued report", cleanReport)
	_, err := h.svc.Reassess(context.Background(), dto.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeReportStateInvalid))
}

func TestRetract_DuringAssessmentDiscardsResults(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)

	dto := h.submit(t, "to be retracted", cleanReport)

	// Retract while the quality component is mid-flight: the first market
	// data call fires the retraction before returning.
	h.market.hook = func() {
		require.NoError(t, h.svc.Retract(context.Background(), dto.ID, "numbers were wrong"))
	}

	_, err := h.svc.RunAssessment(context.Background(), dto.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeReportRetracted), "got %v", err)

	_, err = h.svc.GetAssessment(context.Background(), dto.ID, 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAssessmentNotFound),
		"discarded run must not be persisted")

	final, err := h.svc.GetReport(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, rtypes.StatusRetracted, final.Status)
}

func TestRetract_TerminalStateRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	dto := h.submit(t, "Infosys initiation", cleanReport)
	require.NoError(t, h.svc.Retract(context.Background(), dto.ID, "first"))

	err := h.svc.Retract(context.Background(), dto.ID, "second")
	assert.True(t, errors.IsCode(err, errors.ErrCodeReportStateInvalid))
}

func TestArchive(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	dto := h.submit(t, "Infosys initiation", cleanReport)
	require.NoError(t, h.svc.Archive(context.Background(), dto.ID))

	final, err := h.svc.GetReport(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, rtypes.StatusArchived, final.Status)

	_, err = h.svc.Reassess(context.Background(), dto.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeReportStateInvalid))
}

func TestGetAssessment_VersionsAndCache(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	dto := h.submit(t, "Infosys initiation", cleanReport)
	_, err := h.svc.Reassess(context.Background(), dto.ID)
	require.NoError(t, err)

	v1, err := h.svc.GetAssessment(context.Background(), dto.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)

	latest, err := h.svc.GetAssessment(context.Background(), dto.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Greater(t, h.cache.Hits, 0, "latest lookup must be served from cache")

	_, err = h.svc.GetAssessment(context.Background(), dto.ID, 9)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAssessmentNotFound))

	_, err = h.svc.GetAssessment(context.Background(), dto.ID, -1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestCompare(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	a := h.submit(t, "original", cleanReport)
	b := h.submit(t, "near copy", cleanReport+" A closing remark was appended to this version.")

	cmp, err := h.svc.Compare(context.Background(), []common.ID{a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, cmp.Assessments, 2)
	require.Len(t, cmp.Pairs, 1)

	pair := cmp.Pairs[0]
	assert.LessOrEqual(t, string(pair.ReportID), string(pair.OtherReportID))
	assert.Greater(t, pair.Score, 0.85)

	stored, err := h.matches.FindBetween(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, stored.DetectedAt, pair.DetectedAt, "recorded pair keeps its original detection time")
}

func TestCompare_Validation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)
	dto := h.submit(t, "only one", cleanReport)

	_, err := h.svc.Compare(context.Background(), []common.ID{dto.ID, dto.ID})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation), "duplicates collapse below the minimum")

	ids := make([]common.ID, 11)
	for i := range ids {
		ids[i] = common.NewID()
	}
	_, err = h.svc.Compare(context.Background(), ids)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	_, err = h.svc.Compare(context.Background(), []common.ID{dto.ID, common.NewID()})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAssessmentNotFound))
}

func TestListReports(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)

	h.submit(t, "first", cleanReport)
	h.submit(t, "second", cleanReport+" This second note differs in its closing paragraph only.")

	out, total, err := h.svc.ListReports(context.Background(), report.ListFilter{}, common.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, out, 2)
	for _, dto := range out {
		assert.Empty(t, dto.Text, "listings must not carry report bodies")
	}

	out, total, err = h.svc.ListReports(context.Background(),
		report.ListFilter{Ticker: "INFY.NS"}, common.Pagination{Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, out, 1)
}
