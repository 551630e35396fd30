// Package handlers contains the HTTP handler implementations for the
// PerfPulse API: snapshot retrieval, historical series, trend analysis, and
// report generation.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"perfpulse/internal/core"
	"perfpulse/internal/types"
)

// defaultSeriesLength is used when the client does not request an explicit
// history length.
const defaultSeriesLength = 12

// SnapshotService is the aggregation engine contract the handler depends on.
// Defined locally to avoid tight coupling to the analytics package types.
type SnapshotService interface {
	GetOrCompute(ctx context.Context, orgID string, kind types.ScopeKind, entityID string, periodType types.PeriodType, ref time.Time) (*types.MetricsSnapshot, error)
}

// SeriesService builds chronological metric series.
type SeriesService interface {
	BuildMetricSeries(ctx context.Context, orgID string, kind types.ScopeKind, entityID string, periodType types.PeriodType, count int, metricName string) (types.Series, error)
}

// TrendService analyzes a series into a trend result.
type TrendService interface {
	Analyze(series types.Series, category types.MetricCategory) (*types.TrendResult, error)
}

// AnalyticsHandler maps HTTP requests onto the aggregation, series, and trend
// engines.
type AnalyticsHandler struct {
	snapshots SnapshotService
	series    SeriesService
	trends    TrendService
	logger    *slog.Logger
	clock     types.Clock
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(
	snapshots SnapshotService,
	series SeriesService,
	trends TrendService,
	logger *slog.Logger,
	clock types.Clock,
) *AnalyticsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &AnalyticsHandler{
		snapshots: snapshots,
		series:    series,
		trends:    trends,
		logger:    logger,
		clock:     clock,
	}
}

// RegisterRoutes mounts the analytics endpoints onto the mux.
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/snapshots", h.HandleGetSnapshot)
	r.Get("/series", h.HandleGetSeries)
	r.Get("/trends", h.HandleGetTrend)
}

// scopeQuery is the common query parameter set shared by the analytics
// endpoints.
type scopeQuery struct {
	OrganizationID string
	ScopeKind      types.ScopeKind
	EntityID       string
	PeriodType     types.PeriodType
}

// parseScopeQuery extracts and validates the common query parameters.
func parseScopeQuery(r *http.Request) (scopeQuery, error) {
	q := r.URL.Query()

	sq := scopeQuery{
		OrganizationID: q.Get("organization_id"),
		ScopeKind:      types.ScopeKind(q.Get("scope_kind")),
		EntityID:       q.Get("entity_id"),
		PeriodType:     types.PeriodType(q.Get("period_type")),
	}

	if sq.OrganizationID == "" {
		return sq, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"organization_id query parameter is required",
			nil,
		)
	}
	if !types.ValidScopeKind(sq.ScopeKind) {
		return sq, types.NewAppError(
			types.ErrCodeValidationScopeKind,
			"scope_kind must be one of user, team, department, business_unit, organization",
			nil,
		)
	}
	if sq.ScopeKind != types.ScopeOrganization && sq.EntityID == "" {
		return sq, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"entity_id query parameter is required for non-organization scopes",
			nil,
		)
	}
	if !types.ValidPeriodType(sq.PeriodType) {
		return sq, types.NewAppError(
			types.ErrCodeValidationPeriodType,
			"period_type must be one of weekly, monthly, quarterly, yearly",
			nil,
		)
	}

	return sq, nil
}

// HandleGetSnapshot handles GET /v1/snapshots. The optional ref parameter
// (RFC 3339) anchors the period; it defaults to now.
func (h *AnalyticsHandler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	sq, err := parseScopeQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	ref := h.clock.Now()
	if refStr := r.URL.Query().Get("ref"); refStr != "" {
		parsed, err := time.Parse(time.RFC3339, refStr)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationBadRequest,
				"ref must be an RFC 3339 timestamp",
				err,
			))
			return
		}
		ref = parsed
	}

	snap, err := h.snapshots.GetOrCompute(r.Context(), sq.OrganizationID, sq.ScopeKind, sq.EntityID, sq.PeriodType, ref)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "snapshot retrieval failed",
			"organization_id", sq.OrganizationID,
			"scope_kind", sq.ScopeKind,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: snap})
}

// parseLength reads the optional length query parameter.
func parseLength(r *http.Request) (int, error) {
	lengthStr := r.URL.Query().Get("length")
	if lengthStr == "" {
		return defaultSeriesLength, nil
	}
	length, err := strconv.Atoi(lengthStr)
	if err != nil {
		return 0, types.NewAppError(
			types.ErrCodeValidationBadRequest,
			"length must be an integer",
			err,
		)
	}
	return length, nil
}

// HandleGetSeries handles GET /v1/series: a chronological series of one named
// metric ending at the current period.
func (h *AnalyticsHandler) HandleGetSeries(w http.ResponseWriter, r *http.Request) {
	sq, err := parseScopeQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	metric := r.URL.Query().Get("metric")
	if metric == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"metric query parameter is required",
			nil,
		))
		return
	}

	length, err := parseLength(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	series, err := h.series.BuildMetricSeries(r.Context(), sq.OrganizationID, sq.ScopeKind, sq.EntityID, sq.PeriodType, length, metric)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: series})
}

// HandleGetTrend handles GET /v1/trends: builds the metric series and runs
// trend analysis over it. The narrative category derives from the metric
// name.
func (h *AnalyticsHandler) HandleGetTrend(w http.ResponseWriter, r *http.Request) {
	sq, err := parseScopeQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	metric := r.URL.Query().Get("metric")
	if metric == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"metric query parameter is required",
			nil,
		))
		return
	}

	length, err := parseLength(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	series, err := h.series.BuildMetricSeries(r.Context(), sq.OrganizationID, sq.ScopeKind, sq.EntityID, sq.PeriodType, length, metric)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	trend, err := h.trends.Analyze(series, types.MetricCategoryOf(metric))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: trend})
}
