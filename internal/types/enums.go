package types

// PeriodType identifies the calendar granularity of an aggregation period.
type PeriodType string

const (
	PeriodWeekly    PeriodType = "weekly"
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodYearly    PeriodType = "yearly"
)

// ValidPeriodType reports whether t is a recognized period type.
func ValidPeriodType(t PeriodType) bool {
	switch t {
	case PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly:
		return true
	}
	return false
}

// ScopeKind identifies the organizational aggregation level.
type ScopeKind string

const (
	ScopeUser         ScopeKind = "user"
	ScopeTeam         ScopeKind = "team"
	ScopeDepartment   ScopeKind = "department"
	ScopeBusinessUnit ScopeKind = "business_unit"
	ScopeOrganization ScopeKind = "organization"
)

// ValidScopeKind reports whether k is a recognized scope kind.
func ValidScopeKind(k ScopeKind) bool {
	switch k {
	case ScopeUser, ScopeTeam, ScopeDepartment, ScopeBusinessUnit, ScopeOrganization:
		return true
	}
	return false
}

// ReportType identifies one of the five supported report shapes.
type ReportType string

const (
	ReportWeeklySummary       ReportType = "weekly_summary"
	ReportMonthlyCard         ReportType = "monthly_card"
	ReportQuarterlyReview     ReportType = "quarterly_review"
	ReportYearlyIndex         ReportType = "yearly_index"
	ReportComparativeAnalysis ReportType = "comparative_analysis"
)

// ValidReportType reports whether t is a recognized report type.
func ValidReportType(t ReportType) bool {
	switch t {
	case ReportWeeklySummary, ReportMonthlyCard, ReportQuarterlyReview,
		ReportYearlyIndex, ReportComparativeAnalysis:
		return true
	}
	return false
}

// GoalStatus represents the lifecycle state of a goal.
type GoalStatus string

const (
	GoalDraft      GoalStatus = "draft"
	GoalNotStarted GoalStatus = "not_started"
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"
	GoalCancelled  GoalStatus = "cancelled"
)

// ReviewStatus represents the lifecycle state of a performance review.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewInProcess ReviewStatus = "in_process"
	ReviewCompleted ReviewStatus = "completed"
)

// FeedbackType classifies a feedback item.
type FeedbackType string

const (
	FeedbackPositive     FeedbackType = "positive"
	FeedbackConstructive FeedbackType = "constructive"
	FeedbackNeutral      FeedbackType = "neutral"
)

// MembershipStatus represents the state of a team membership.
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
)

// TrendDirection classifies the overall movement of a metric series.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
	TrendVolatile   TrendDirection = "volatile"
)

// MetricCategory groups named metrics for narrative template selection.
type MetricCategory string

const (
	CategoryGoals       MetricCategory = "goals"
	CategoryReviews     MetricCategory = "reviews"
	CategoryFeedback    MetricCategory = "feedback"
	CategoryPerformance MetricCategory = "performance"
	CategoryWellbeing   MetricCategory = "wellbeing"
	CategoryActivity    MetricCategory = "activity"
)

// ComparisonKind identifies the lag used for a period-over-period comparison.
type ComparisonKind string

const (
	ComparisonWeekOverWeek       ComparisonKind = "week_over_week"
	ComparisonMonthOverMonth     ComparisonKind = "month_over_month"
	ComparisonQuarterOverQuarter ComparisonKind = "quarter_over_quarter"
	ComparisonYearOverYear       ComparisonKind = "year_over_year"
)
