package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apprecon "github.com/recon/backend/internal/application/recon"
	"github.com/recon/backend/internal/domain/recon"
	"github.com/recon/backend/internal/interfaces/http/middleware"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReconHandler handles reconciliation run API endpoints
type ReconHandler struct {
	BaseHandler
	store    recon.RunStore
	reports  *apprecon.ReportService
	exporter *apprecon.ExcelExporter
}

// NewReconHandler creates a new ReconHandler
func NewReconHandler(store recon.RunStore, reports *apprecon.ReportService, exporter *apprecon.ExcelExporter) *ReconHandler {
	return &ReconHandler{
		store:    store,
		reports:  reports,
		exporter: exporter,
	}
}

// RegisterRoutes registers reconciliation routes on the given group
func (h *ReconHandler) RegisterRoutes(rg *gin.RouterGroup) {
	runs := rg.Group("/runs")
	{
		runs.GET("", h.ListRuns)
		runs.GET(":id", h.GetRun)
		runs.GET(":id/discrepancies", h.ListDiscrepancies)
		runs.GET(":id/report", h.GetReport)
		runs.GET(":id/report.xlsx", h.DownloadReport)
	}
}

// ===================== Request/Response DTOs =====================

// RunURI binds the run ID path parameter
type RunURI struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

// ListRunsQuery binds list query parameters
type ListRunsQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=1,lte=100"`
}

// RunResponse represents a reconciliation run in API responses
type RunResponse struct {
	RunID            int64     `json:"run_id"`
	ExecutedAt       time.Time `json:"executed_at"`
	Status           string    `json:"status"`
	EntryCount       int       `json:"entry_count"`
	DiscrepancyCount int       `json:"discrepancy_count"`
}

// DiscrepancyRowResponse represents a single finding in API responses
type DiscrepancyRowResponse struct {
	PriorityRank   int      `json:"priority_rank"`
	Kind           string   `json:"kind"`
	VendorID       string   `json:"vendor_id"`
	VendorName     string   `json:"vendor_name"`
	DocumentRef    string   `json:"document_ref"`
	PayablesAmount *float64 `json:"payables_amount,omitempty"`
	LedgerAmount   *float64 `json:"ledger_amount,omitempty"`
	Delta          float64  `json:"delta"`
	AgeDays        int      `json:"age_days"`
	IsNew          bool     `json:"is_new"`
}

// ReportSummaryResponse represents per-kind totals in API responses
type ReportSummaryResponse struct {
	Kind          string  `json:"kind"`
	Count         int     `json:"count"`
	TotalAbsDelta float64 `json:"total_abs_delta"`
}

// ReportResponse represents a full run report
type ReportResponse struct {
	RunID      int64                    `json:"run_id"`
	ExecutedAt time.Time                `json:"executed_at"`
	Rows       []DiscrepancyRowResponse `json:"rows"`
	Summaries  []ReportSummaryResponse  `json:"summaries"`
}

// ===================== Handler Methods =====================

// ListRuns returns committed runs, newest first
func (h *ReconHandler) ListRuns(c *gin.Context) {
	var q ListRunsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	runs, err := h.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]RunResponse, len(runs))
	for i, run := range runs {
		responses[i] = toRunResponse(&run)
	}
	h.SuccessWithMeta(c, responses, int64(len(responses)), limit, len(responses))
}

// GetRun returns a single run's metadata
func (h *ReconHandler) GetRun(c *gin.Context) {
	var uri RunURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	run, err := h.store.GetRun(c.Request.Context(), uri.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toRunResponse(run))
}

// ListDiscrepancies returns a committed run's findings in priority order
func (h *ReconHandler) ListDiscrepancies(c *gin.Context) {
	var uri RunURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	report, err := h.reports.BuildReport(c.Request.Context(), uri.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toRowResponses(report.Rows))
}

// GetReport returns the assembled report for a committed run
func (h *ReconHandler) GetReport(c *gin.Context) {
	var uri RunURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	report, err := h.reports.BuildReport(c.Request.Context(), uri.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toReportResponse(report))
}

// DownloadReport streams the report as an xlsx workbook
func (h *ReconHandler) DownloadReport(c *gin.Context) {
	var uri RunURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	report, err := h.reports.BuildReport(c.Request.Context(), uri.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	f, err := h.exporter.Build(report)
	if err != nil {
		h.InternalError(c, "Failed to render report workbook")
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("divergencias-%d-%s.xlsx", report.RunID, report.ExecutedAt.Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)

	if _, err := f.WriteTo(c.Writer); err != nil {
		// Headers are already sent; nothing left to do but record the failure.
		_ = c.Error(err)
	}
}

// ===================== Response Conversion Functions =====================

func toRunResponse(run *recon.RunRecord) RunResponse {
	return RunResponse{
		RunID:            run.RunID,
		ExecutedAt:       run.ExecutedAt,
		Status:           run.Status.String(),
		EntryCount:       run.EntryCount,
		DiscrepancyCount: run.DiscrepancyCount,
	}
}

func toRowResponses(rows []apprecon.ReportRow) []DiscrepancyRowResponse {
	responses := make([]DiscrepancyRowResponse, len(rows))
	for i, row := range rows {
		resp := DiscrepancyRowResponse{
			PriorityRank: row.PriorityRank,
			Kind:         row.Kind,
			VendorID:     row.VendorID,
			VendorName:   row.VendorName,
			DocumentRef:  row.DocumentRef,
			Delta:        row.Delta.InexactFloat64(),
			AgeDays:      row.AgeDays,
			IsNew:        row.IsNew,
		}
		if row.PayablesAmount != nil {
			v := row.PayablesAmount.InexactFloat64()
			resp.PayablesAmount = &v
		}
		if row.LedgerAmount != nil {
			v := row.LedgerAmount.InexactFloat64()
			resp.LedgerAmount = &v
		}
		responses[i] = resp
	}
	return responses
}

func toReportResponse(report *apprecon.Report) ReportResponse {
	summaries := make([]ReportSummaryResponse, len(report.Summaries))
	for i, s := range report.Summaries {
		summaries[i] = ReportSummaryResponse{
			Kind:          s.Kind,
			Count:         s.Count,
			TotalAbsDelta: s.TotalAbsDelta.InexactFloat64(),
		}
	}
	return ReportResponse{
		RunID:      report.RunID,
		ExecutedAt: report.ExecutedAt,
		Rows:       toRowResponses(report.Rows),
		Summaries:  summaries,
	}
}
