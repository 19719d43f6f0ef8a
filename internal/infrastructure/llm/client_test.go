package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EquityLens/internal/config"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

func sampleAssessment() rtypes.AssessmentDTO {
	return rtypes.AssessmentDTO{
		Version:      2,
		OverallScore: 68.4,
		Dimensions: []rtypes.DimensionScoreDTO{
			{Name: "content_depth", Score: 70, Weight: 0.2, Available: true},
			{Name: "originality", Available: false, Reason: "similarity unavailable"},
		},
		Similarity: rtypes.SimilarityResultDTO{PlagiarismSuspected: true, MaxScore: 0.91,
			Matches: []rtypes.SimilarityMatchDTO{{ReportID: "a", OtherReportID: "b", Score: 0.91}}},
		AIDetection:   rtypes.AIDetectionDTO{Label: rtypes.AuthorshipHuman, Probability: 0.2, Confidence: 0.8},
		DegradedCount: 1,
	}
}

func TestClient_NarrateReturnsChoice(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "  Quality is fair.  "}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(config.LLMConfig{BaseURL: srv.URL, Model: "gpt-test"}, logging.NewNopLogger())
	require.NoError(t, err)

	narrative, err := c.Narrate(context.Background(), sampleAssessment())
	require.NoError(t, err)
	assert.Equal(t, "Quality is fair.", narrative)

	require.Len(t, gotReq.Messages, 2)
	facts := gotReq.Messages[1].Content
	assert.Contains(t, facts, "Overall quality score: 68.4")
	assert.Contains(t, facts, "Plagiarism candidates: 1")
	assert.Contains(t, facts, "Degraded dimensions this run: 1")
}

func TestClient_NarrateEmptyChoiceFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	c, err := NewClient(config.LLMConfig{BaseURL: srv.URL, Model: "gpt-test"}, logging.NewNopLogger())
	require.NoError(t, err)

	_, err = c.Narrate(context.Background(), sampleAssessment())
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
}
