package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

// SubmitReportRequest is the submission payload.
type SubmitReportRequest struct {
	Title     string `json:"title"`
	AnalystID string `json:"analyst_id"`
	Text      string `json:"text"`
}

// ListReportsRequest narrows and paginates report listings.  Zero values mean
// no filter and server-side defaults.
type ListReportsRequest struct {
	AnalystID string
	Status    string
	Ticker    string
	Page      int
	PageSize  int
}

// ListReportsResponse is one page of reports.
type ListReportsResponse struct {
	Reports    []rtypes.ReportDTO `json:"reports"`
	Pagination common.Pagination  `json:"pagination"`
}

// HistoryResponse is the full assessment history of a report.
type HistoryResponse struct {
	Assessments []rtypes.AssessmentDTO `json:"assessments"`
}

// SubmitReport submits a report for assessment.
func (c *Client) SubmitReport(ctx context.Context, req SubmitReportRequest) (rtypes.ReportDTO, error) {
	var out rtypes.ReportDTO
	err := c.do(ctx, http.MethodPost, "/api/v1/reports", nil, req, &out)
	return out, err
}

// GetReport fetches one report.
func (c *Client) GetReport(ctx context.Context, reportID string) (rtypes.ReportDTO, error) {
	var out rtypes.ReportDTO
	err := c.do(ctx, http.MethodGet, "/api/v1/reports/"+url.PathEscape(reportID), nil, nil, &out)
	return out, err
}

// ListReports lists reports newest first.
func (c *Client) ListReports(ctx context.Context, req ListReportsRequest) (ListReportsResponse, error) {
	q := url.Values{}
	if req.AnalystID != "" {
		q.Set("analyst_id", req.AnalystID)
	}
	if req.Status != "" {
		q.Set("status", req.Status)
	}
	if req.Ticker != "" {
		q.Set("ticker", req.Ticker)
	}
	if req.Page > 0 {
		q.Set("page", strconv.Itoa(req.Page))
	}
	if req.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(req.PageSize))
	}
	var out ListReportsResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/reports", q, nil, &out)
	return out, err
}

// GetAssessment fetches one assessment run; version 0 means latest.
func (c *Client) GetAssessment(ctx context.Context, reportID string, version int) (rtypes.AssessmentDTO, error) {
	q := url.Values{}
	if version > 0 {
		q.Set("version", strconv.Itoa(version))
	}
	var out rtypes.AssessmentDTO
	err := c.do(ctx, http.MethodGet,
		"/api/v1/reports/"+url.PathEscape(reportID)+"/assessment", q, nil, &out)
	return out, err
}

// GetHistory fetches every assessment of a report in version order.
func (c *Client) GetHistory(ctx context.Context, reportID string) (HistoryResponse, error) {
	var out HistoryResponse
	err := c.do(ctx, http.MethodGet,
		"/api/v1/reports/"+url.PathEscape(reportID)+"/history", nil, nil, &out)
	return out, err
}

// Compare builds the pairwise comparison matrix for 2..10 reports.
func (c *Client) Compare(ctx context.Context, reportIDs []string) (rtypes.ComparisonDTO, error) {
	var out rtypes.ComparisonDTO
	err := c.do(ctx, http.MethodPost, "/api/v1/assessments/compare", nil,
		map[string][]string{"report_ids": reportIDs}, &out)
	return out, err
}

// Reassess schedules a fresh assessment version.
func (c *Client) Reassess(ctx context.Context, reportID string) (rtypes.ReportDTO, error) {
	var out rtypes.ReportDTO
	err := c.do(ctx, http.MethodPost,
		"/api/v1/reports/"+url.PathEscape(reportID)+"/reassess", nil, nil, &out)
	return out, err
}

// Retract withdraws a report.
func (c *Client) Retract(ctx context.Context, reportID, reason string) error {
	return c.do(ctx, http.MethodPost,
		"/api/v1/reports/"+url.PathEscape(reportID)+"/retract", nil,
		map[string]string{"reason": reason}, nil)
}

// Archive moves an assessed report to the archived state.
func (c *Client) Archive(ctx context.Context, reportID string) error {
	return c.do(ctx, http.MethodPost,
		"/api/v1/reports/"+url.PathEscape(reportID)+"/archive", nil, nil, nil)
}
