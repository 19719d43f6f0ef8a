package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

func TestClient_SubmitReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/reports", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))

		var req SubmitReportRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Infosys initiation", req.Title)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(rtypes.ReportDTO{BaseEntity: common.BaseEntity{ID: "rpt-1"}, Status: rtypes.StatusAssessed})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "key-1")
	require.NoError(t, err)

	dto, err := c.SubmitReport(context.Background(), SubmitReportRequest{
		Title: "Infosys initiation", AnalystID: "analyst-7", Text: "body",
	})
	require.NoError(t, err)
	assert.Equal(t, "rpt-1", string(dto.ID))
}

func TestClient_GetAssessmentVersionQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/reports/rpt-1/assessment", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("version"))
		json.NewEncoder(w).Encode(rtypes.AssessmentDTO{ReportID: "rpt-1", Version: 2})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "")
	require.NoError(t, err)

	asmt, err := c.GetAssessment(context.Background(), "rpt-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, asmt.Version)
}

func TestClient_ErrorResponseDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"code": "RPT_001", "message": "report not found",
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "")
	require.NoError(t, err)

	_, err = c.GetReport(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "RPT_001", apiErr.Code)
}

func TestClient_RetractNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/reports/rpt-1/retract", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "")
	require.NoError(t, err)
	require.NoError(t, c.Retract(context.Background(), "rpt-1", "stale data"))
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient("", "")
	assert.Error(t, err)
}
