package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"perfpulse/internal/analytics"
	"perfpulse/internal/core"
	"perfpulse/internal/types"
)

// defaultReportListLimit bounds GET /v1/reports when no limit is given.
const defaultReportListLimit = 20

// ReportGenerator is the report composition contract the handler depends on.
type ReportGenerator interface {
	Generate(ctx context.Context, req analytics.GenerateRequest) (*types.ReportDocument, error)
}

// ReportReader reads persisted report documents.
type ReportReader interface {
	GetByCacheKey(ctx context.Context, cacheKey string) (*types.ReportDocument, error)
	ListRecent(ctx context.Context, orgID string, limit int) ([]types.ReportDocument, error)
}

// ReportHandler maps HTTP requests onto report generation and retrieval.
type ReportHandler struct {
	generator ReportGenerator
	reader    ReportReader
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(generator ReportGenerator, reader ReportReader, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{
		generator: generator,
		reader:    reader,
		validate:  validator.New(),
		logger:    logger,
	}
}

// RegisterRoutes mounts the report endpoints onto the mux.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Post("/reports", h.HandleGenerateReport)
	r.Get("/reports", h.HandleListReports)
	r.Get("/reports/lookup", h.HandleLookupReport)
}

// generateReportRequest is the POST /v1/reports request body.
type generateReportRequest struct {
	OrganizationID string     `json:"organization_id" validate:"required"`
	ReportType     string     `json:"report_type" validate:"required,oneof=weekly_summary monthly_card quarterly_review yearly_index comparative_analysis"`
	ScopeKind      string     `json:"scope_kind" validate:"required,oneof=user team department business_unit organization"`
	EntityID       string     `json:"entity_id" validate:"required_unless=ScopeKind organization"`
	PeriodStart    *time.Time `json:"period_start,omitempty"`
	Metrics        []string   `json:"metrics,omitempty"`
	HistoryLength  int        `json:"history_length,omitempty" validate:"omitempty,min=1,max=120"`
}

// HandleGenerateReport handles POST /v1/reports: composes the requested
// report shape and returns the persisted document.
func (h *ReportHandler) HandleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var body generateReportRequest
	if err := core.DecodeJSON(w, r, &body); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validate.Struct(&body); err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationBadRequest,
			"invalid report request: "+err.Error(),
			err,
		))
		return
	}

	req := analytics.GenerateRequest{
		OrganizationID: body.OrganizationID,
		ReportType:     types.ReportType(body.ReportType),
		ScopeKind:      types.ScopeKind(body.ScopeKind),
		EntityID:       body.EntityID,
		PeriodStart:    body.PeriodStart,
	}
	if len(body.Metrics) > 0 || body.HistoryLength > 0 {
		req.Config = &analytics.ReportConfig{
			Metrics:       body.Metrics,
			HistoryLength: body.HistoryLength,
		}
	}

	doc, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "report generation failed",
			"organization_id", body.OrganizationID,
			"report_type", body.ReportType,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: doc})
}

// HandleLookupReport handles GET /v1/reports/lookup: fetches one persisted
// document by its deterministic (organization, report type, period label)
// key.
func (h *ReportHandler) HandleLookupReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	orgID := q.Get("organization_id")
	reportType := types.ReportType(q.Get("report_type"))
	periodLabel := q.Get("period_label")

	if orgID == "" || periodLabel == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"organization_id and period_label query parameters are required",
			nil,
		))
		return
	}
	if !types.ValidReportType(reportType) {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationReportType,
			"report_type must be one of weekly_summary, monthly_card, quarterly_review, yearly_index, comparative_analysis",
			nil,
		))
		return
	}

	doc, err := h.reader.GetByCacheKey(r.Context(), analytics.ReportCacheKey(orgID, reportType, periodLabel))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: doc})
}

// HandleListReports handles GET /v1/reports: lists recent report headers for
// an organization, newest first.
func (h *ReportHandler) HandleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	orgID := q.Get("organization_id")
	if orgID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"organization_id query parameter is required",
			nil,
		))
		return
	}

	limit := defaultReportListLimit
	if limitStr := q.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationBadRequest,
				"limit must be a positive integer",
				err,
			))
			return
		}
		limit = parsed
	}

	docs, err := h.reader.ListRecent(r.Context(), orgID, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: docs})
}
