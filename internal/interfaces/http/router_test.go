package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
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
	httpiface "github.com/turtacn/EquityLens/internal/interfaces/http"
	"github.com/turtacn/EquityLens/internal/testutil"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

const sampleReport = `We initiate coverage of INFY.NS with a BUY and a target price of 1850 based on
a DCF valuation cross-checked against an EV/EBITDA multiple. We forecast
revenue growth of 12 percent in FY2026 and margin expansion of 80 basis
points. Against that, the slowdown in banking budgets is a clear headwind, and
key risks include client concentration, wage pressure, and currency
volatility. Our model assumes a 9 percent discount rate; the methodology and
company filings underpinning it are detailed in the appendix. Analyst
certification: the analyst does not hold any position in the covered security.
According to management commentary, deal wins reached 2400 million dollars in
the quarter, a record for the franchise.`

type openMarketData struct{}

func (openMarketData) Quote(_ context.Context, symbol string) (quality.Quote, error) {
	return quality.Quote{Symbol: symbol, Price: 1500, Currency: "INR"}, nil
}

// newTestRouter wires the real service over in-memory repositories behind
// the gin router, so requests exercise the full stack.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	reports := testutil.NewMemoryReportRepository()

	embedder := similarity.NewLexicalEmbedder()
	analyzer, err := similarity.NewAnalyzer(similarity.Deps{
		Embedder:      embedder,
		Index:         similarity.NewMemoryIndex(embedder.Dimension()),
		Fallback:      similarity.NewLexicalEmbedder(),
		FallbackIndex: similarity.NewMemoryIndex(embedder.Dimension()),
		Texts:         assessment.NewReportTexts(reports),
	}, similarity.Config{Threshold: 0.85, TopK: 10, SpanWindowSize: 50})
	require.NoError(t, err)

	scorer, err := quality.NewScorer(config.DefaultQualityWeights(), openMarketData{}, nil)
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

	svc, err := assessment.NewService(assessment.Deps{
		Reports:     reports,
		Assessments: testutil.NewMemoryAssessmentRepository(),
		Matches:     testutil.NewMemoryMatchRepository(),
		Normalizer:  ingest.NewNormalizer(nil),
		Runner:      runner,
	})
	require.NoError(t, err)

	return httpiface.NewRouter(config.ServerConfig{Mode: "test"}, httpiface.RouterDeps{
		Service: svc,
	})
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func submitSample(t *testing.T, router http.Handler, title string) rtypes.ReportDTO {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/reports", map[string]string{
		"title":      title,
		"analyst_id": "analyst-7",
		"text":       sampleReport,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var dto rtypes.ReportDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	return dto
}

func TestRouter_SubmitAndFetchAssessment(t *testing.T) {
	router := newTestRouter(t)

	dto := submitSample(t, router, "Infosys initiation")
	assert.Equal(t, rtypes.StatusAssessed, dto.Status)
	assert.Contains(t, dto.Tickers, "INFY.NS")

	rec := doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/v1/reports/%s/assessment", dto.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var asmt rtypes.AssessmentDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &asmt))
	assert.Equal(t, 1, asmt.Version)
	assert.Len(t, asmt.Dimensions, 7)
	assert.NotEmpty(t, asmt.Narrative)
}

func TestRouter_SubmitValidation(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/reports", map[string]string{
		"title": "missing fields",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "COMMON_007", body["code"])
}

func TestRouter_UnknownReportIs404(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/reports/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/reports/nope/assessment", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ReassessAndHistory(t *testing.T) {
	router := newTestRouter(t)
	dto := submitSample(t, router, "Infosys initiation")

	rec := doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/reports/%s/reassess", dto.ID), nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/v1/reports/%s/history", dto.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var history struct {
		Assessments []rtypes.AssessmentDTO `json:"assessments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Assessments, 2)
	assert.Equal(t, 1, history.Assessments[0].Version)
	assert.Equal(t, 2, history.Assessments[1].Version)
}

func TestRouter_RetractThenReassessConflicts(t *testing.T) {
	router := newTestRouter(t)
	dto := submitSample(t, router, "Infosys initiation")

	rec := doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/reports/%s/retract", dto.ID),
		map[string]string{"reason": "figures under review"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/reports/%s/reassess", dto.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_CompareTwoReports(t *testing.T) {
	router := newTestRouter(t)
	a := submitSample(t, router, "Infosys initiation")
	b := submitSample(t, router, "Infosys initiation copy")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/assessments/compare",
		map[string][]string{"report_ids": {string(a.ID), string(b.ID)}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cmp rtypes.ComparisonDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cmp))
	assert.Len(t, cmp.Assessments, 2)
	require.Len(t, cmp.Pairs, 1)
	assert.GreaterOrEqual(t, cmp.Pairs[0].Score, 0.85)
}

func TestRouter_ListFiltersAndPaginates(t *testing.T) {
	router := newTestRouter(t)
	submitSample(t, router, "Infosys initiation")
	submitSample(t, router, "Infosys follow-up")

	rec := doJSON(t, router, http.MethodGet, "/api/v1/reports?ticker=INFY.NS&page_size=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Reports    []rtypes.ReportDTO `json:"reports"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Reports, 1)
	assert.EqualValues(t, 2, list.Pagination.Total)
	assert.Empty(t, list.Reports[0].Text)
}

func TestRouter_Healthz(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
