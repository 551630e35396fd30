package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"perfpulse/internal/analytics"
	"perfpulse/internal/types"
)

// SnapshotRepository persists computed metrics snapshots keyed by their
// natural key. It implements analytics.SnapshotStore. Writes replace the
// whole row via upsert; there are no partial snapshot updates.
type SnapshotRepository struct {
	db DBTX
}

// NewSnapshotRepository creates a SnapshotRepository backed by the given
// database connection (pool or transaction).
func NewSnapshotRepository(db DBTX) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

var _ analytics.SnapshotStore = (*SnapshotRepository)(nil)

// snapshotColumns is the full column set, kept in one place so Get and
// Upsert cannot drift.
const snapshotColumns = `organization_id, scope_kind, entity_id, period_type, period_start,
	period_end, period_label,
	total_goals, completed_goals, in_progress_goals, not_started_goals,
	on_track_goals, at_risk_goals, overdue_goals, avg_goal_progress, goal_completion_rate,
	total_reviews, completed_reviews, pending_reviews, avg_review_rating,
	total_feedback, positive_feedback, constructive_feedback, avg_sentiment,
	avg_productivity, avg_quality, avg_collaboration, avg_performance_score,
	workload_hours, wellbeing_score,
	total_activities, active_users, computed_at`

// Get returns the stored snapshot for the key, or (nil, nil) when none
// exists. A miss is an expected condition, not an error.
func (r *SnapshotRepository) Get(ctx context.Context, key types.SnapshotKey) (*types.MetricsSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM metrics_snapshots
		WHERE organization_id = $1 AND scope_kind = $2 AND entity_id = $3
		  AND period_type = $4 AND period_start = $5`

	var s types.MetricsSnapshot
	err := r.db.QueryRow(ctx, query,
		key.OrganizationID, key.ScopeKind, key.EntityID, key.PeriodType, key.PeriodStart,
	).Scan(
		&s.OrganizationID, &s.ScopeKind, &s.EntityID, &s.PeriodType, &s.PeriodStart,
		&s.PeriodEnd, &s.PeriodLabel,
		&s.TotalGoals, &s.CompletedGoals, &s.InProgressGoals, &s.NotStartedGoals,
		&s.OnTrackGoals, &s.AtRiskGoals, &s.OverdueGoals, &s.AvgGoalProgress, &s.GoalCompletionRate,
		&s.TotalReviews, &s.CompletedReviews, &s.PendingReviews, &s.AvgReviewRating,
		&s.TotalFeedback, &s.PositiveFeedback, &s.ConstructiveFeedback, &s.AvgSentiment,
		&s.AvgProductivity, &s.AvgQuality, &s.AvgCollaboration, &s.AvgPerformanceScore,
		&s.WorkloadHours, &s.WellbeingScore,
		&s.TotalActivities, &s.ActiveUsers, &s.ComputedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get snapshot", err)
	}
	return &s, nil
}

// Upsert writes the snapshot, replacing any existing row with the same
// natural key. The write is idempotent: two workers racing on the same key
// converge on the same deterministic values.
func (r *SnapshotRepository) Upsert(ctx context.Context, snap *types.MetricsSnapshot) error {
	query := `INSERT INTO metrics_snapshots (` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33)
		ON CONFLICT (organization_id, scope_kind, entity_id, period_type, period_start)
		DO UPDATE SET
			period_end = EXCLUDED.period_end,
			period_label = EXCLUDED.period_label,
			total_goals = EXCLUDED.total_goals,
			completed_goals = EXCLUDED.completed_goals,
			in_progress_goals = EXCLUDED.in_progress_goals,
			not_started_goals = EXCLUDED.not_started_goals,
			on_track_goals = EXCLUDED.on_track_goals,
			at_risk_goals = EXCLUDED.at_risk_goals,
			overdue_goals = EXCLUDED.overdue_goals,
			avg_goal_progress = EXCLUDED.avg_goal_progress,
			goal_completion_rate = EXCLUDED.goal_completion_rate,
			total_reviews = EXCLUDED.total_reviews,
			completed_reviews = EXCLUDED.completed_reviews,
			pending_reviews = EXCLUDED.pending_reviews,
			avg_review_rating = EXCLUDED.avg_review_rating,
			total_feedback = EXCLUDED.total_feedback,
			positive_feedback = EXCLUDED.positive_feedback,
			constructive_feedback = EXCLUDED.constructive_feedback,
			avg_sentiment = EXCLUDED.avg_sentiment,
			avg_productivity = EXCLUDED.avg_productivity,
			avg_quality = EXCLUDED.avg_quality,
			avg_collaboration = EXCLUDED.avg_collaboration,
			avg_performance_score = EXCLUDED.avg_performance_score,
			workload_hours = EXCLUDED.workload_hours,
			wellbeing_score = EXCLUDED.wellbeing_score,
			total_activities = EXCLUDED.total_activities,
			active_users = EXCLUDED.active_users,
			computed_at = EXCLUDED.computed_at`

	_, err := r.db.Exec(ctx, query,
		snap.OrganizationID, snap.ScopeKind, snap.EntityID, snap.PeriodType, snap.PeriodStart,
		snap.PeriodEnd, snap.PeriodLabel,
		snap.TotalGoals, snap.CompletedGoals, snap.InProgressGoals, snap.NotStartedGoals,
		snap.OnTrackGoals, snap.AtRiskGoals, snap.OverdueGoals, snap.AvgGoalProgress, snap.GoalCompletionRate,
		snap.TotalReviews, snap.CompletedReviews, snap.PendingReviews, snap.AvgReviewRating,
		snap.TotalFeedback, snap.PositiveFeedback, snap.ConstructiveFeedback, snap.AvgSentiment,
		snap.AvgProductivity, snap.AvgQuality, snap.AvgCollaboration, snap.AvgPerformanceScore,
		snap.WorkloadHours, snap.WellbeingScore,
		snap.TotalActivities, snap.ActiveUsers, snap.ComputedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert snapshot", err)
	}
	return nil
}

// DeleteComputedBefore removes snapshots computed before the cutoff, in
// service of scheduled retention cleanup. An empty organization ID applies
// the cutoff globally. Returns the number of rows removed.
func (r *SnapshotRepository) DeleteComputedBefore(ctx context.Context, orgID string, cutoff time.Time) (int64, error) {
	query := `DELETE FROM metrics_snapshots WHERE computed_at < $1`
	args := []any{cutoff}
	if orgID != "" {
		query += ` AND organization_id = $2`
		args = append(args, orgID)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete expired snapshots", err)
	}
	return tag.RowsAffected(), nil
}
