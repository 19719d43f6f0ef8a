package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/EquityLens/internal/application/assessment"
	"github.com/turtacn/EquityLens/internal/domain/report"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

// ReportHandler exposes the assessment service over HTTP.
type ReportHandler struct {
	svc assessment.Service
}

// NewReportHandler constructs the handler.
func NewReportHandler(svc assessment.Service) *ReportHandler {
	return &ReportHandler{svc: svc}
}

type submitRequest struct {
	Title     string `json:"title" binding:"required"`
	AnalystID string `json:"analyst_id" binding:"required"`
	Text      string `json:"text" binding:"required"`
}

// Submit handles POST /api/v1/reports.
func (h *ReportHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Validation("title, analyst_id and text are required"))
		return
	}

	dto, err := h.svc.SubmitReport(c.Request.Context(), assessment.SubmitInput{
		Title:     req.Title,
		AnalystID: common.AnalystID(req.AnalystID),
		Text:      req.Text,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

// Get handles GET /api/v1/reports/:id.
func (h *ReportHandler) Get(c *gin.Context) {
	dto, err := h.svc.GetReport(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

type listResponse struct {
	Reports    []rtypes.ReportDTO `json:"reports"`
	Pagination common.Pagination  `json:"pagination"`
}

// List handles GET /api/v1/reports.
func (h *ReportHandler) List(c *gin.Context) {
	filter := report.ListFilter{
		AnalystID: common.AnalystID(c.Query("analyst_id")),
		Status:    rtypes.ReportStatus(c.Query("status")),
		Ticker:    c.Query("ticker"),
	}
	page := parsePagination(c)

	reports, total, err := h.svc.ListReports(c.Request.Context(), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	if reports == nil {
		reports = []rtypes.ReportDTO{}
	}
	page.Total = total
	c.JSON(http.StatusOK, listResponse{Reports: reports, Pagination: page})
}

// GetAssessment handles GET /api/v1/reports/:id/assessment.  The optional
// version query selects a historical run; its absence means latest.
func (h *ReportHandler) GetAssessment(c *gin.Context) {
	version := 0
	if raw := c.Query("version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, errors.Validation("version must be an integer"))
			return
		}
		version = v
	}

	dto, err := h.svc.GetAssessment(c.Request.Context(), common.ID(c.Param("id")), version)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

type historyResponse struct {
	Assessments []rtypes.AssessmentDTO `json:"assessments"`
}

// History handles GET /api/v1/reports/:id/history.
func (h *ReportHandler) History(c *gin.Context) {
	history, err := h.svc.GetHistory(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	if history == nil {
		history = []rtypes.AssessmentDTO{}
	}
	c.JSON(http.StatusOK, historyResponse{Assessments: history})
}

type compareRequest struct {
	ReportIDs []string `json:"report_ids" binding:"required"`
}

// Compare handles POST /api/v1/assessments/compare.
func (h *ReportHandler) Compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Validation("report_ids is required"))
		return
	}
	ids := make([]common.ID, len(req.ReportIDs))
	for i, raw := range req.ReportIDs {
		ids[i] = common.ID(raw)
	}

	dto, err := h.svc.Compare(c.Request.Context(), ids)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// Reassess handles POST /api/v1/reports/:id/reassess.
func (h *ReportHandler) Reassess(c *gin.Context) {
	dto, err := h.svc.Reassess(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto)
}

type retractRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Retract handles POST /api/v1/reports/:id/retract.
func (h *ReportHandler) Retract(c *gin.Context) {
	var req retractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Validation("reason is required"))
		return
	}
	if err := h.svc.Retract(c.Request.Context(), common.ID(c.Param("id")), req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Archive handles POST /api/v1/reports/:id/archive.
func (h *ReportHandler) Archive(c *gin.Context) {
	if err := h.svc.Archive(c.Request.Context(), common.ID(c.Param("id"))); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
