package types

import "time"

// Goal is a performance goal owned by a single user. Draft goals are invisible
// to aggregation; the remaining statuses form the progress partition.
type Goal struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	OwnerID        string     `json:"owner_id"`
	Title          string     `json:"title"`
	Status         GoalStatus `json:"status"`
	// Progress is a 0-100 completion percentage.
	Progress    float64    `json:"progress"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Review is a performance review cycle entry for a user.
type Review struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	RevieweeID     string       `json:"reviewee_id"`
	ReviewerID     string       `json:"reviewer_id"`
	Status         ReviewStatus `json:"status"`
	// Rating is on a 0-10 scale; nil until the reviewer submits one.
	Rating      *float64   `json:"rating,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FeedbackItem is a piece of peer or manager feedback addressed to a user.
type FeedbackItem struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	RecipientID    string       `json:"recipient_id"`
	AuthorID       string       `json:"author_id"`
	Type           FeedbackType `json:"type"`
	// SentimentScore is in [-1, 1]; nil when the item has not been scored.
	SentimentScore *float64  `json:"sentiment_score,omitempty"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// PerformanceRecord is one dated measurement of a user's performance metrics.
// Score fields are on a 0-10 scale; EngagementScore is 0-100.
type PerformanceRecord struct {
	ID                string    `json:"id"`
	OrganizationID    string    `json:"organization_id"`
	UserID            string    `json:"user_id"`
	MetricDate        time.Time `json:"metric_date"`
	Productivity      float64   `json:"productivity"`
	Quality           float64   `json:"quality"`
	Collaboration     float64   `json:"collaboration"`
	PerformanceScore  float64   `json:"performance_score"`
	ActiveTimeMinutes int       `json:"active_time_minutes"`
	EngagementScore   float64   `json:"engagement_score"`
}

// ActivityEvent is a single tracked platform action by a user.
type ActivityEvent struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	ActorID        string    `json:"actor_id"`
	Action         string    `json:"action"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// TeamMembership links a user to a team. Only active memberships participate
// in team-scope resolution.
type TeamMembership struct {
	TeamID   string           `json:"team_id"`
	UserID   string           `json:"user_id"`
	Status   MembershipStatus `json:"status"`
	JoinedAt time.Time        `json:"joined_at"`
	LeftAt   *time.Time       `json:"left_at,omitempty"`
}

// ReportSchedule drives recurring report generation for an organization.
// The scheduler enqueues a report job whenever NextRunAt has passed and then
// advances NextRunAt by one period of the schedule's report cadence.
type ReportSchedule struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	ReportType     ReportType `json:"report_type"`
	ScopeKind      ScopeKind  `json:"scope_kind"`
	EntityID       string     `json:"entity_id"`
	Enabled        bool       `json:"enabled"`
	NextRunAt      time.Time  `json:"next_run_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
