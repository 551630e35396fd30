package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"perfpulse/internal/types"
)

// Default history lengths per report shape.
const (
	weeklyHistory    = 12
	monthlyHistory   = 12
	quarterlyHistory = 8
	yearlyHistory    = 3
)

// Insight thresholds.
const (
	insightPercentChange  = 10.0
	achievementCompletion = 80.0
	achievementScore      = 8.0
	trendRecommendMin     = 60
)

// trackedMetrics is the fixed metric set every report analyzes and compares.
var trackedMetrics = []string{
	types.MetricGoalCompletionRate,
	types.MetricAvgGoalProgress,
	types.MetricAvgPerformanceScore,
	types.MetricWellbeingScore,
	types.MetricAvgReviewRating,
	types.MetricAvgSentiment,
	types.MetricTotalActivities,
}

// ReportStore persists report documents. Upsert writes by the document's
// cache key: a first write inserts with access count 1, a repeat write for
// the same key updates the document in place and increments the counter.
// Upsert fills in the stored ID and the post-write access count on doc.
// Implemented by db.ReportRepository.
type ReportStore interface {
	Upsert(ctx context.Context, doc *types.ReportDocument) error
}

// ReportTelemetry receives report generation observability events. A nil
// value disables emission.
type ReportTelemetry interface {
	RecordReportGeneration(ctx context.Context, reportType types.ReportType, duration time.Duration, err error)
}

// GenerateRequest describes one report generation.
type GenerateRequest struct {
	OrganizationID string
	ReportType     types.ReportType
	ScopeKind      types.ScopeKind
	EntityID       string
	// PeriodStart optionally anchors the report period; when nil the current
	// period at generation time is used.
	PeriodStart *time.Time
	// Config optionally overrides the tracked metric set and history length.
	Config *ReportConfig
}

// ReportConfig carries per-request overrides for report composition.
type ReportConfig struct {
	Metrics       []string
	HistoryLength int
}

// Composer orchestrates the aggregation engine, series builder, and trend
// analyzer into one of the five report shapes and persists the result.
// Report generation is atomic per invocation: a failure leaves no partial
// document behind, and a failure for one report type never affects others.
type Composer struct {
	aggregator *Aggregator
	series     *SeriesBuilder
	trends     *TrendAnalyzer
	reports    ReportStore
	telemetry  ReportTelemetry
	logger     *slog.Logger
	clock      types.Clock
}

// NewComposer creates a report Composer. Telemetry may be nil.
func NewComposer(
	aggregator *Aggregator,
	series *SeriesBuilder,
	trends *TrendAnalyzer,
	reports ReportStore,
	telemetry ReportTelemetry,
	logger *slog.Logger,
	clock types.Clock,
) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Composer{
		aggregator: aggregator,
		series:     series,
		trends:     trends,
		reports:    reports,
		telemetry:  telemetry,
		logger:     logger,
		clock:      clock,
	}
}

// Generate dispatches to the builder for the requested report shape,
// persists the document via upsert on its deterministic cache key, and
// returns it with the stored access count.
func (c *Composer) Generate(ctx context.Context, req GenerateRequest) (*types.ReportDocument, error) {
	started := c.clock.Now()
	doc, err := c.generate(ctx, req)
	if c.telemetry != nil {
		c.telemetry.RecordReportGeneration(ctx, req.ReportType, c.clock.Now().Sub(started), err)
	}
	return doc, err
}

func (c *Composer) generate(ctx context.Context, req GenerateRequest) (*types.ReportDocument, error) {
	if !types.ValidReportType(req.ReportType) {
		return nil, types.NewAppError(
			types.ErrCodeValidationReportType,
			fmt.Sprintf("unrecognized report type: %q", req.ReportType),
			nil,
		)
	}
	if !types.ValidScopeKind(req.ScopeKind) {
		return nil, types.NewAppError(
			types.ErrCodeValidationScopeKind,
			fmt.Sprintf("unrecognized scope kind: %q", req.ScopeKind),
			nil,
		)
	}

	ref := c.clock.Now()
	if req.PeriodStart != nil {
		ref = *req.PeriodStart
	}

	var (
		doc *types.ReportDocument
		err error
	)
	switch req.ReportType {
	case types.ReportWeeklySummary:
		doc, err = c.buildPeriodReport(ctx, req, ref, types.PeriodWeekly, weeklyHistory, types.ComparisonWeekOverWeek)
	case types.ReportMonthlyCard:
		doc, err = c.buildPeriodReport(ctx, req, ref, types.PeriodMonthly, monthlyHistory, types.ComparisonMonthOverMonth)
	case types.ReportQuarterlyReview:
		doc, err = c.buildPeriodReport(ctx, req, ref, types.PeriodQuarterly, quarterlyHistory, types.ComparisonQuarterOverQuarter)
	case types.ReportYearlyIndex:
		doc, err = c.buildPeriodReport(ctx, req, ref, types.PeriodYearly, yearlyHistory, types.ComparisonYearOverYear)
	case types.ReportComparativeAnalysis:
		doc, err = c.buildComparativeReport(ctx, req, ref)
	}
	if err != nil {
		return nil, err
	}

	doc.OrganizationID = req.OrganizationID
	doc.ReportType = req.ReportType
	doc.ScopeKind = req.ScopeKind
	doc.EntityID = req.EntityID
	doc.CacheKey = ReportCacheKey(req.OrganizationID, req.ReportType, doc.PeriodLabel)
	doc.GeneratedAt = c.clock.Now()

	if err := c.reports.Upsert(ctx, doc); err != nil {
		return nil, fmt.Errorf("persisting report document: %w", err)
	}

	c.logger.InfoContext(ctx, "report generated",
		"organization_id", req.OrganizationID,
		"report_type", string(req.ReportType),
		"scope_kind", string(req.ScopeKind),
		"entity_id", req.EntityID,
		"period_label", doc.PeriodLabel,
		"access_count", doc.AccessCount,
	)
	return doc, nil
}

// ReportCacheKey is the deterministic upsert key for a report document.
func ReportCacheKey(orgID string, reportType types.ReportType, periodLabel string) string {
	return fmt.Sprintf("report:%s:%s:%s", orgID, reportType, periodLabel)
}

// buildPeriodReport assembles the weekly, monthly, quarterly, and yearly
// report shapes, which share a structure: one anchor period, one comparison
// period, an optional year-ago section and sub-period breakdown for the
// coarser shapes, trends over a shape-specific history length, and
// threshold-rule insight lists.
func (c *Composer) buildPeriodReport(ctx context.Context, req GenerateRequest, ref time.Time, periodType types.PeriodType, history int, compKind types.ComparisonKind) (*types.ReportDocument, error) {
	if req.Config != nil && req.Config.HistoryLength > 0 {
		history = req.Config.HistoryLength
	}
	metrics := trackedMetrics
	if req.Config != nil && len(req.Config.Metrics) > 0 {
		metrics = req.Config.Metrics
	}

	period, err := Boundaries(periodType, ref)
	if err != nil {
		return nil, err
	}

	// The history walk covers the current and previous periods, so only the
	// year-ago section and breakdown need separate concurrent fetches.
	var (
		snapshots []*types.MetricsSnapshot
		yearAgo   *types.MetricsSnapshot
		breakdown []*types.MetricsSnapshot
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshots, err = c.series.BuildSnapshotsFrom(gCtx, req.OrganizationID, req.ScopeKind, req.EntityID, periodType, history, ref)
		return err
	})

	wantsYearAgo := periodType == types.PeriodQuarterly || periodType == types.PeriodYearly
	if wantsYearAgo {
		g.Go(func() error {
			var err error
			yearAgo, err = c.aggregator.GetOrCompute(gCtx, req.OrganizationID, req.ScopeKind, req.EntityID, periodType, period.Start.AddDate(-1, 0, 0))
			return err
		})
	}

	switch periodType {
	case types.PeriodQuarterly:
		g.Go(func() error {
			var err error
			breakdown, err = c.series.BuildSnapshotsFrom(gCtx, req.OrganizationID, req.ScopeKind, req.EntityID, types.PeriodMonthly, elapsedSubPeriods(period.Start, ref, 1, 3), ref)
			return err
		})
	case types.PeriodYearly:
		g.Go(func() error {
			var err error
			breakdown, err = c.series.BuildSnapshotsFrom(gCtx, req.OrganizationID, req.ScopeKind, req.EntityID, types.PeriodQuarterly, elapsedSubPeriods(period.Start, ref, 3, 4), ref)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	current := snapshots[len(snapshots)-1]
	var previous *types.MetricsSnapshot
	if len(snapshots) > 1 {
		previous = snapshots[len(snapshots)-2]
	}

	trends, err := c.analyzeMetrics(snapshots, periodType, metrics)
	if err != nil {
		return nil, err
	}

	comparisons := map[types.ComparisonKind]map[string]types.MetricComparison{
		compKind: compareSnapshots(current, previous, metrics),
	}
	if wantsYearAgo && compKind != types.ComparisonYearOverYear {
		comparisons[types.ComparisonYearOverYear] = compareSnapshots(current, yearAgo, metrics)
	}

	doc := &types.ReportDocument{
		PeriodLabel: period.Label,
		Title:       reportTitle(req.ReportType, period.Label),
		Data: types.ReportData{
			Current:   current,
			Previous:  previous,
			YearAgo:   yearAgo,
			Breakdown: breakdown,
		},
		KPIs:        ComputeKPIs(current),
		Trends:      trends,
		Comparisons: comparisons,
	}

	c.deriveNarratives(doc, compKind)
	return doc, nil
}

// buildComparativeReport assembles one document carrying all four comparison
// kinds for the entity: each kind anchors its own period granularity and
// compares the current period against the previous one at that granularity.
// The document is labeled with the monthly period.
func (c *Composer) buildComparativeReport(ctx context.Context, req GenerateRequest, ref time.Time) (*types.ReportDocument, error) {
	metrics := trackedMetrics
	if req.Config != nil && len(req.Config.Metrics) > 0 {
		metrics = req.Config.Metrics
	}

	kinds := []struct {
		kind       types.ComparisonKind
		periodType types.PeriodType
	}{
		{types.ComparisonWeekOverWeek, types.PeriodWeekly},
		{types.ComparisonMonthOverMonth, types.PeriodMonthly},
		{types.ComparisonQuarterOverQuarter, types.PeriodQuarterly},
		{types.ComparisonYearOverYear, types.PeriodYearly},
	}

	pairs := make([][2]*types.MetricsSnapshot, len(kinds))
	g, gCtx := errgroup.WithContext(ctx)
	for i, k := range kinds {
		g.Go(func() error {
			snaps, err := c.series.BuildSnapshotsFrom(gCtx, req.OrganizationID, req.ScopeKind, req.EntityID, k.periodType, 2, ref)
			if err != nil {
				return err
			}
			pairs[i] = [2]*types.MetricsSnapshot{snaps[0], snaps[len(snaps)-1]}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	comparisons := make(map[types.ComparisonKind]map[string]types.MetricComparison, len(kinds))
	for i, k := range kinds {
		comparisons[k.kind] = compareSnapshots(pairs[i][1], pairs[i][0], metrics)
	}

	// Trend context comes from the monthly granularity, the middle ground
	// between reactive weekly noise and slow yearly movement.
	snapshots, err := c.series.BuildSnapshotsFrom(ctx, req.OrganizationID, req.ScopeKind, req.EntityID, types.PeriodMonthly, monthlyHistory, ref)
	if err != nil {
		return nil, err
	}
	trends, err := c.analyzeMetrics(snapshots, types.PeriodMonthly, metrics)
	if err != nil {
		return nil, err
	}

	monthly, err := Boundaries(types.PeriodMonthly, ref)
	if err != nil {
		return nil, err
	}

	current := snapshots[len(snapshots)-1]
	var previous *types.MetricsSnapshot
	if len(snapshots) > 1 {
		previous = snapshots[len(snapshots)-2]
	}

	doc := &types.ReportDocument{
		PeriodLabel: monthly.Label,
		Title:       reportTitle(req.ReportType, monthly.Label),
		Data: types.ReportData{
			Current:  current,
			Previous: previous,
		},
		KPIs:        ComputeKPIs(current),
		Trends:      trends,
		Comparisons: comparisons,
	}

	c.deriveNarratives(doc, types.ComparisonMonthOverMonth)
	return doc, nil
}

// analyzeMetrics runs the trend engine for each named metric over the shared
// snapshot history.
func (c *Composer) analyzeMetrics(snapshots []*types.MetricsSnapshot, periodType types.PeriodType, metrics []string) (map[string]*types.TrendResult, error) {
	trends := make(map[string]*types.TrendResult, len(metrics))
	for _, name := range metrics {
		series, err := ExtractSeries(snapshots, periodType, name)
		if err != nil {
			return nil, err
		}
		result, err := c.trends.Analyze(series, types.MetricCategoryOf(name))
		if err != nil {
			return nil, err
		}
		trends[name] = result
	}
	return trends, nil
}

// compareSnapshots builds the per-metric comparison block. A nil comparison
// snapshot yields zero previous values, keeping percent change defined.
func compareSnapshots(current, previous *types.MetricsSnapshot, metrics []string) map[string]types.MetricComparison {
	out := make(map[string]types.MetricComparison, len(metrics))
	for _, name := range metrics {
		cur, _ := current.Metric(name)
		var prev float64
		if previous != nil {
			prev, _ = previous.Metric(name)
		}
		out[name] = types.MetricComparison{
			Current:       cur,
			Previous:      prev,
			Change:        round2(cur - prev),
			PercentChange: round2(percentChange(cur, prev)),
		}
	}
	return out
}

// ComputeKPIs derives the composite 0-100 scores: unweighted means of
// normalized sub-scores, with 0-10 rating inputs scaled to the 0-100 basis
// and the -1..1 sentiment scale shifted onto it.
func ComputeKPIs(snap *types.MetricsSnapshot) types.KPIScores {
	atRiskRatio := safeDiv(float64(snap.AtRiskGoals), float64(snap.TotalGoals))
	goals := mean([]float64{
		snap.GoalCompletionRate,
		snap.AvgGoalProgress,
		100 - atRiskRatio*100,
	})

	reviews := mean([]float64{
		safeDiv(float64(snap.CompletedReviews), float64(snap.TotalReviews)) * 100,
		snap.AvgReviewRating * 10,
	})

	positiveRatio := safeDiv(float64(snap.PositiveFeedback), float64(snap.TotalFeedback))
	feedback := mean([]float64{
		positiveRatio * 100,
		(snap.AvgSentiment + 1) * 50,
	})

	performance := mean([]float64{
		snap.AvgProductivity * 10,
		snap.AvgQuality * 10,
		snap.AvgCollaboration * 10,
		snap.AvgPerformanceScore * 10,
	})

	scores := types.KPIScores{
		Goals:       round2(goals),
		Reviews:     round2(reviews),
		Feedback:    round2(feedback),
		Performance: round2(performance),
	}
	scores.Overall = round2(mean([]float64{scores.Goals, scores.Reviews, scores.Feedback, scores.Performance}))
	return scores
}

// deriveNarratives fills the summary and the insight, achievement,
// improvement, and recommendation lists from threshold rules over the
// document's comparisons and trends.
func (c *Composer) deriveNarratives(doc *types.ReportDocument, primary types.ComparisonKind) {
	snap := doc.Data.Current

	if comps, ok := doc.Comparisons[primary]; ok {
		if comp, ok := comps[types.MetricGoalCompletionRate]; ok {
			switch {
			case comp.PercentChange > insightPercentChange:
				doc.Insights = append(doc.Insights, fmt.Sprintf(
					"Goal completion rate improved %.1f%% over the comparison period (%.1f%% to %.1f%%).",
					comp.PercentChange, comp.Previous, comp.Current))
			case comp.PercentChange < -insightPercentChange:
				doc.Insights = append(doc.Insights, fmt.Sprintf(
					"Goal completion rate fell %.1f%% over the comparison period (%.1f%% to %.1f%%).",
					-comp.PercentChange, comp.Previous, comp.Current))
			}
		}
		if comp, ok := comps[types.MetricAvgSentiment]; ok && comp.PercentChange > insightPercentChange {
			doc.Insights = append(doc.Insights, "Feedback sentiment is improving against the comparison period.")
		}
	}

	if snap.AtRiskGoals > 0 {
		doc.Improvements = append(doc.Improvements, fmt.Sprintf(
			"%d goal(s) are at risk and need attention.", snap.AtRiskGoals))
	}
	if snap.OverdueGoals > 0 {
		doc.Improvements = append(doc.Improvements, fmt.Sprintf(
			"%d goal(s) are overdue.", snap.OverdueGoals))
	}

	if snap.GoalCompletionRate >= achievementCompletion {
		doc.Achievements = append(doc.Achievements, fmt.Sprintf(
			"Goal completion rate reached %.1f%%.", snap.GoalCompletionRate))
	}
	if snap.AvgPerformanceScore >= achievementScore {
		doc.Achievements = append(doc.Achievements, fmt.Sprintf(
			"Average performance score held at %.1f of 10.", snap.AvgPerformanceScore))
	}
	if snap.CompletedGoals > 0 {
		doc.Achievements = append(doc.Achievements, fmt.Sprintf(
			"%d goal(s) completed this period.", snap.CompletedGoals))
	}

	seen := make(map[string]struct{})
	for _, name := range sortedTrendNames(doc.Trends) {
		trend := doc.Trends[name]
		if trend.Strength > trendRecommendMin && len(trend.Recommendations) > 0 {
			top := trend.Recommendations[0]
			if _, dup := seen[top]; !dup {
				seen[top] = struct{}{}
				doc.Recommendations = append(doc.Recommendations, top)
			}
		}
	}
	if len(doc.Recommendations) == 0 {
		doc.Recommendations = append(doc.Recommendations, "Continue monitoring; no action needed at current trend levels.")
	}

	doc.Summary = fmt.Sprintf(
		"%s: overall KPI %.1f/100 (goals %.1f, reviews %.1f, feedback %.1f, performance %.1f). %d insight(s), %d item(s) needing attention.",
		doc.PeriodLabel, doc.KPIs.Overall, doc.KPIs.Goals, doc.KPIs.Reviews,
		doc.KPIs.Feedback, doc.KPIs.Performance, len(doc.Insights), len(doc.Improvements))
}

// sortedTrendNames returns trend map keys in the stable tracked-metric order
// so recommendation selection is deterministic.
func sortedTrendNames(trends map[string]*types.TrendResult) []string {
	names := make([]string, 0, len(trends))
	for _, name := range trackedMetrics {
		if _, ok := trends[name]; ok {
			names = append(names, name)
		}
	}
	for name := range trends {
		if types.MetricCategoryOf(name) == types.CategoryPerformance && !contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// reportTitle renders the shape-specific document title.
func reportTitle(reportType types.ReportType, periodLabel string) string {
	switch reportType {
	case types.ReportWeeklySummary:
		return fmt.Sprintf("Weekly Performance Summary - %s", periodLabel)
	case types.ReportMonthlyCard:
		return fmt.Sprintf("Monthly Performance Card - %s", periodLabel)
	case types.ReportQuarterlyReview:
		return fmt.Sprintf("Quarterly Business Review - %s", periodLabel)
	case types.ReportYearlyIndex:
		return fmt.Sprintf("Yearly Performance Index - %s", periodLabel)
	default:
		return fmt.Sprintf("Comparative Analysis - %s", periodLabel)
	}
}

// elapsedSubPeriods counts how many sub-periods of monthsPer months each have
// elapsed between the coarse period's start and the reference date, bounded
// to [1, max]. Mid-period generation must not walk into future sub-periods.
func elapsedSubPeriods(coarseStart, ref time.Time, monthsPer, max int) int {
	months := (ref.Year()-coarseStart.Year())*12 + int(ref.Month()) - int(coarseStart.Month())
	n := months/monthsPer + 1
	if n < 1 {
		n = 1
	}
	if n > max {
		n = max
	}
	return n
}
