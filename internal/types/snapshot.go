package types

import "time"

// Period is a calendar-aligned aggregation window with a deterministic
// human-readable label. Start and End are both inclusive instants; End is the
// last nanosecond of the period.
type Period struct {
	Type  PeriodType `json:"type"`
	Start time.Time  `json:"start"`
	End   time.Time  `json:"end"`
	Label string     `json:"label"`
}

// SnapshotKey is the natural key of a MetricsSnapshot.
type SnapshotKey struct {
	OrganizationID string     `json:"organization_id"`
	ScopeKind      ScopeKind  `json:"scope_kind"`
	EntityID       string     `json:"entity_id"`
	PeriodType     PeriodType `json:"period_type"`
	PeriodStart    time.Time  `json:"period_start"`
}

// MetricsSnapshot is the normalized metrics result for one (organization,
// scope, entity, period) tuple. It is immutable once computed; recomputation
// replaces the whole row via upsert, never a partial update.
//
// Count fields use independent status partitions per category and are NOT
// guaranteed to sum to their category total.
type MetricsSnapshot struct {
	SnapshotKey

	PeriodEnd   time.Time `json:"period_end"`
	PeriodLabel string    `json:"period_label"`

	// Goals.
	TotalGoals         int     `json:"total_goals"`
	CompletedGoals     int     `json:"completed_goals"`
	InProgressGoals    int     `json:"in_progress_goals"`
	NotStartedGoals    int     `json:"not_started_goals"`
	OnTrackGoals       int     `json:"on_track_goals"`
	AtRiskGoals        int     `json:"at_risk_goals"`
	OverdueGoals       int     `json:"overdue_goals"`
	AvgGoalProgress    float64 `json:"avg_goal_progress"`
	GoalCompletionRate float64 `json:"goal_completion_rate"`

	// Reviews (cumulative as of period end).
	TotalReviews     int     `json:"total_reviews"`
	CompletedReviews int     `json:"completed_reviews"`
	PendingReviews   int     `json:"pending_reviews"`
	AvgReviewRating  float64 `json:"avg_review_rating"`

	// Feedback (cumulative as of period end).
	TotalFeedback        int     `json:"total_feedback"`
	PositiveFeedback     int     `json:"positive_feedback"`
	ConstructiveFeedback int     `json:"constructive_feedback"`
	AvgSentiment         float64 `json:"avg_sentiment"`

	// Performance scores (range-bounded to the period).
	AvgProductivity     float64 `json:"avg_productivity"`
	AvgQuality          float64 `json:"avg_quality"`
	AvgCollaboration    float64 `json:"avg_collaboration"`
	AvgPerformanceScore float64 `json:"avg_performance_score"`
	WorkloadHours       float64 `json:"workload_hours"`
	WellbeingScore      float64 `json:"wellbeing_score"`

	// Activity (cumulative as of period end).
	TotalActivities int `json:"total_activities"`
	ActiveUsers     int `json:"active_users"`

	ComputedAt time.Time `json:"computed_at"`
}

// Metric returns the named metric value from the snapshot, or (0, false) for
// an unknown name. The names form the stable vocabulary shared by the series
// builder, trend engine, and report composer.
func (s *MetricsSnapshot) Metric(name string) (float64, bool) {
	switch name {
	case MetricTotalGoals:
		return float64(s.TotalGoals), true
	case MetricCompletedGoals:
		return float64(s.CompletedGoals), true
	case MetricAtRiskGoals:
		return float64(s.AtRiskGoals), true
	case MetricOverdueGoals:
		return float64(s.OverdueGoals), true
	case MetricAvgGoalProgress:
		return s.AvgGoalProgress, true
	case MetricGoalCompletionRate:
		return s.GoalCompletionRate, true
	case MetricTotalReviews:
		return float64(s.TotalReviews), true
	case MetricCompletedReviews:
		return float64(s.CompletedReviews), true
	case MetricAvgReviewRating:
		return s.AvgReviewRating, true
	case MetricTotalFeedback:
		return float64(s.TotalFeedback), true
	case MetricAvgSentiment:
		return s.AvgSentiment, true
	case MetricAvgProductivity:
		return s.AvgProductivity, true
	case MetricAvgQuality:
		return s.AvgQuality, true
	case MetricAvgCollaboration:
		return s.AvgCollaboration, true
	case MetricAvgPerformanceScore:
		return s.AvgPerformanceScore, true
	case MetricWorkloadHours:
		return s.WorkloadHours, true
	case MetricWellbeingScore:
		return s.WellbeingScore, true
	case MetricTotalActivities:
		return float64(s.TotalActivities), true
	case MetricActiveUsers:
		return float64(s.ActiveUsers), true
	}
	return 0, false
}

// Named metric identifiers.
const (
	MetricTotalGoals          = "total_goals"
	MetricCompletedGoals      = "completed_goals"
	MetricAtRiskGoals         = "at_risk_goals"
	MetricOverdueGoals        = "overdue_goals"
	MetricAvgGoalProgress     = "avg_goal_progress"
	MetricGoalCompletionRate  = "goal_completion_rate"
	MetricTotalReviews        = "total_reviews"
	MetricCompletedReviews    = "completed_reviews"
	MetricAvgReviewRating     = "avg_review_rating"
	MetricTotalFeedback       = "total_feedback"
	MetricAvgSentiment        = "avg_sentiment"
	MetricAvgProductivity     = "avg_productivity"
	MetricAvgQuality          = "avg_quality"
	MetricAvgCollaboration    = "avg_collaboration"
	MetricAvgPerformanceScore = "avg_performance_score"
	MetricWorkloadHours       = "workload_hours"
	MetricWellbeingScore      = "wellbeing_score"
	MetricTotalActivities     = "total_activities"
	MetricActiveUsers         = "active_users"
)

// MetricCategoryOf maps a named metric to its category. Unknown metrics map
// to CategoryPerformance, the neutral default for narrative templates.
func MetricCategoryOf(name string) MetricCategory {
	switch name {
	case MetricTotalGoals, MetricCompletedGoals, MetricAtRiskGoals,
		MetricOverdueGoals, MetricAvgGoalProgress, MetricGoalCompletionRate:
		return CategoryGoals
	case MetricTotalReviews, MetricCompletedReviews, MetricAvgReviewRating:
		return CategoryReviews
	case MetricTotalFeedback, MetricAvgSentiment:
		return CategoryFeedback
	case MetricWellbeingScore:
		return CategoryWellbeing
	case MetricTotalActivities, MetricActiveUsers:
		return CategoryActivity
	default:
		return CategoryPerformance
	}
}

// SeriesPoint is one named-metric value for one historical period.
type SeriesPoint struct {
	PeriodLabel string    `json:"period_label"`
	PeriodStart time.Time `json:"period_start"`
	Value       float64   `json:"value"`
}

// Series is a chronologically ascending, non-empty sequence of points,
// oldest first, one per historical period.
type Series struct {
	MetricName string        `json:"metric_name"`
	PeriodType PeriodType    `json:"period_type"`
	Points     []SeriesPoint `json:"points"`
}

// Values extracts the raw value slice in chronological order.
func (s Series) Values() []float64 {
	vals := make([]float64, len(s.Points))
	for i, p := range s.Points {
		vals[i] = p.Value
	}
	return vals
}

// GrowthRates holds the lagged period-over-period growth percentages.
// A nil field means the series is too short for that comparison.
type GrowthRates struct {
	WeekOverWeek       *float64 `json:"week_over_week,omitempty"`
	MonthOverMonth     *float64 `json:"month_over_month,omitempty"`
	QuarterOverQuarter *float64 `json:"quarter_over_quarter,omitempty"`
	YearOverYear       *float64 `json:"year_over_year,omitempty"`
}

// Forecast is a one-or-more-step-ahead linear extrapolation of a series.
type Forecast struct {
	Value        float64 `json:"value"`
	PeriodsAhead int     `json:"periods_ahead"`
	// Confidence is 0-100, decaying with forecast distance.
	Confidence int `json:"confidence"`
}

// TrendResult is the stateless output of analyzing one metric series.
type TrendResult struct {
	MetricName string         `json:"metric_name"`
	Category   MetricCategory `json:"category"`

	Direction TrendDirection `json:"direction"`
	// Strength is 0-100.
	Strength int     `json:"strength"`
	Slope    float64 `json:"slope"`
	RSquared float64 `json:"r_squared"`

	CurrentValue  float64 `json:"current_value"`
	PreviousValue float64 `json:"previous_value"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`

	// Moving averages over trailing 7/30/90 points, clipped to series length.
	MovingAvg7  float64 `json:"moving_avg_7"`
	MovingAvg30 float64 `json:"moving_avg_30"`
	MovingAvg90 float64 `json:"moving_avg_90"`

	Growth   GrowthRates `json:"growth"`
	Forecast Forecast    `json:"forecast"`

	Patterns        []string `json:"patterns"`
	Interpretation  string   `json:"interpretation"`
	Recommendations []string `json:"recommendations"`
}

// MetricComparison is one metric's current-vs-previous comparison block.
// PercentChange is defined as zero when the previous value is zero.
type MetricComparison struct {
	Current       float64 `json:"current"`
	Previous      float64 `json:"previous"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`
}

// ReportData carries the raw snapshots a report was composed from.
type ReportData struct {
	Current  *MetricsSnapshot `json:"current"`
	Previous *MetricsSnapshot `json:"previous,omitempty"`
	YearAgo  *MetricsSnapshot `json:"year_ago,omitempty"`
	// Breakdown holds sub-period snapshots for quarterly/yearly reports
	// (months within the quarter, quarters within the year), oldest first.
	Breakdown []*MetricsSnapshot `json:"breakdown,omitempty"`
}

// KPIScores are composite 0-100 scores per category plus an overall mean.
type KPIScores struct {
	Goals       float64 `json:"goals"`
	Reviews     float64 `json:"reviews"`
	Feedback    float64 `json:"feedback"`
	Performance float64 `json:"performance"`
	Overall     float64 `json:"overall"`
}

// ReportDocument is the composition root persisted per
// (organization, report type, period label).
type ReportDocument struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	ReportType     ReportType `json:"report_type"`
	ScopeKind      ScopeKind  `json:"scope_kind"`
	EntityID       string     `json:"entity_id"`
	PeriodLabel    string     `json:"period_label"`
	CacheKey       string     `json:"cache_key"`

	Title   string `json:"title"`
	Summary string `json:"summary"`

	Data        ReportData                                     `json:"data"`
	KPIs        KPIScores                                      `json:"kpis"`
	Trends      map[string]*TrendResult                        `json:"trends"`
	Comparisons map[ComparisonKind]map[string]MetricComparison `json:"comparisons"`

	Insights        []string `json:"insights"`
	Achievements    []string `json:"achievements"`
	Improvements    []string `json:"improvements"`
	Recommendations []string `json:"recommendations"`

	GeneratedAt time.Time `json:"generated_at"`
	AccessCount int       `json:"access_count"`
}
