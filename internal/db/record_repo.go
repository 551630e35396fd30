package db

import (
	"context"
	"fmt"

	"perfpulse/internal/analytics"
	"perfpulse/internal/types"
)

// RecordRepository reads raw performance records for the aggregation engine.
// It implements analytics.RecordStore: each list method translates the
// predicate's organization, owner, and temporal constraints into SQL so
// filtering happens at the query layer, never in Go.
type RecordRepository struct {
	db DBTX
}

// NewRecordRepository creates a RecordRepository backed by the given database
// connection (pool or transaction).
func NewRecordRepository(db DBTX) *RecordRepository {
	return &RecordRepository{db: db}
}

var _ analytics.RecordStore = (*RecordRepository)(nil)

// ownerClause renders the predicate's owner filter against ownerCol, assuming
// the owning user's profile is joined as u. It appends bind arguments to args
// and returns the SQL fragment, or "" for organization scope. An empty owner
// list renders a clause that matches nothing, which is the correct result for
// a team with no active members.
func ownerClause(owner analytics.OwnerFilter, ownerCol string, args *[]any) string {
	switch {
	case owner.OwnerIDs != nil:
		*args = append(*args, owner.OwnerIDs)
		return fmt.Sprintf(" AND %s = ANY($%d)", ownerCol, len(*args))
	case owner.Department != "":
		*args = append(*args, owner.Department)
		return fmt.Sprintf(" AND u.department = $%d", len(*args))
	case owner.BusinessUnit != "":
		*args = append(*args, owner.BusinessUnit)
		return fmt.Sprintf(" AND u.business_unit = $%d", len(*args))
	default:
		return ""
	}
}

// temporalClause renders the predicate's inclusion rule against instantCol.
// Goals use goalOverlapClause instead; this covers the single-timestamp
// categories.
func temporalClause(pred analytics.RecordPredicate, instantCol string, args *[]any) string {
	switch pred.Rule {
	case analytics.TemporalRange:
		*args = append(*args, pred.PeriodStart, pred.PeriodEnd)
		return fmt.Sprintf(" AND %s >= $%d AND %s <= $%d",
			instantCol, len(*args)-1, instantCol, len(*args))
	default:
		*args = append(*args, pred.PeriodEnd)
		return fmt.Sprintf(" AND %s <= $%d", instantCol, len(*args))
	}
}

// goalOverlapClause renders the goal inclusion window: completed within the
// period, or created by period end and not due before period start.
func goalOverlapClause(pred analytics.RecordPredicate, args *[]any) string {
	*args = append(*args, pred.PeriodStart, pred.PeriodEnd)
	start, end := len(*args)-1, len(*args)
	return fmt.Sprintf(` AND (
		(g.completed_at >= $%d AND g.completed_at <= $%d)
		OR (g.created_at <= $%d AND (g.due_date IS NULL OR g.due_date >= $%d))
	)`, start, end, end, start)
}

// ListGoals implements analytics.RecordStore. Draft goals are excluded at the
// query layer so they never reach aggregation.
func (r *RecordRepository) ListGoals(ctx context.Context, pred analytics.RecordPredicate) ([]types.Goal, error) {
	args := []any{pred.OrganizationID}
	query := `SELECT g.id, g.organization_id, g.owner_id, g.title, g.status,
		g.progress, g.due_date, g.completed_at, g.created_at, g.updated_at
		FROM goals g
		JOIN users u ON u.id = g.owner_id
		WHERE g.organization_id = $1 AND g.status <> 'draft'`
	query += ownerClause(pred.Owner, "g.owner_id", &args)
	query += goalOverlapClause(pred, &args)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list goals", err)
	}
	defer rows.Close()

	var goals []types.Goal
	for rows.Next() {
		var g types.Goal
		if err := rows.Scan(
			&g.ID, &g.OrganizationID, &g.OwnerID, &g.Title, &g.Status,
			&g.Progress, &g.DueDate, &g.CompletedAt, &g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan goal", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "goal row iteration failed", err)
	}
	return goals, nil
}

// ListReviews implements analytics.RecordStore.
func (r *RecordRepository) ListReviews(ctx context.Context, pred analytics.RecordPredicate) ([]types.Review, error) {
	args := []any{pred.OrganizationID}
	query := `SELECT r.id, r.organization_id, r.reviewee_id, r.reviewer_id,
		r.status, r.rating, r.completed_at, r.created_at
		FROM reviews r
		JOIN users u ON u.id = r.reviewee_id
		WHERE r.organization_id = $1`
	query += ownerClause(pred.Owner, "r.reviewee_id", &args)
	query += temporalClause(pred, "r.created_at", &args)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list reviews", err)
	}
	defer rows.Close()

	var reviews []types.Review
	for rows.Next() {
		var rv types.Review
		if err := rows.Scan(
			&rv.ID, &rv.OrganizationID, &rv.RevieweeID, &rv.ReviewerID,
			&rv.Status, &rv.Rating, &rv.CompletedAt, &rv.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan review", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "review row iteration failed", err)
	}
	return reviews, nil
}

// ListFeedback implements analytics.RecordStore.
func (r *RecordRepository) ListFeedback(ctx context.Context, pred analytics.RecordPredicate) ([]types.FeedbackItem, error) {
	args := []any{pred.OrganizationID}
	query := `SELECT f.id, f.organization_id, f.recipient_id, f.author_id,
		f.feedback_type, f.sentiment_score, f.body, f.created_at
		FROM feedback f
		JOIN users u ON u.id = f.recipient_id
		WHERE f.organization_id = $1`
	query += ownerClause(pred.Owner, "f.recipient_id", &args)
	query += temporalClause(pred, "f.created_at", &args)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list feedback", err)
	}
	defer rows.Close()

	var items []types.FeedbackItem
	for rows.Next() {
		var f types.FeedbackItem
		if err := rows.Scan(
			&f.ID, &f.OrganizationID, &f.RecipientID, &f.AuthorID,
			&f.Type, &f.SentimentScore, &f.Body, &f.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan feedback item", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "feedback row iteration failed", err)
	}
	return items, nil
}

// ListPerformanceRecords implements analytics.RecordStore. Performance rows
// are range-bounded on their metric date.
func (r *RecordRepository) ListPerformanceRecords(ctx context.Context, pred analytics.RecordPredicate) ([]types.PerformanceRecord, error) {
	args := []any{pred.OrganizationID}
	query := `SELECT p.id, p.organization_id, p.user_id, p.metric_date,
		p.productivity, p.quality, p.collaboration, p.performance_score,
		p.active_time_minutes, p.engagement_score
		FROM performance_metrics p
		JOIN users u ON u.id = p.user_id
		WHERE p.organization_id = $1`
	query += ownerClause(pred.Owner, "p.user_id", &args)
	query += temporalClause(pred, "p.metric_date", &args)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list performance records", err)
	}
	defer rows.Close()

	var records []types.PerformanceRecord
	for rows.Next() {
		var p types.PerformanceRecord
		if err := rows.Scan(
			&p.ID, &p.OrganizationID, &p.UserID, &p.MetricDate,
			&p.Productivity, &p.Quality, &p.Collaboration, &p.PerformanceScore,
			&p.ActiveTimeMinutes, &p.EngagementScore,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan performance record", err)
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "performance row iteration failed", err)
	}
	return records, nil
}

// ListActivityEvents implements analytics.RecordStore.
func (r *RecordRepository) ListActivityEvents(ctx context.Context, pred analytics.RecordPredicate) ([]types.ActivityEvent, error) {
	args := []any{pred.OrganizationID}
	query := `SELECT a.id, a.organization_id, a.actor_id, a.action, a.occurred_at
		FROM activity_events a
		JOIN users u ON u.id = a.actor_id
		WHERE a.organization_id = $1`
	query += ownerClause(pred.Owner, "a.actor_id", &args)
	query += temporalClause(pred, "a.occurred_at", &args)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list activity events", err)
	}
	defer rows.Close()

	var events []types.ActivityEvent
	for rows.Next() {
		var e types.ActivityEvent
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.ActorID, &e.Action, &e.OccurredAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan activity event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "activity row iteration failed", err)
	}
	return events, nil
}

// InsertFeedback stores one submitted feedback item.
func (r *RecordRepository) InsertFeedback(ctx context.Context, item *types.FeedbackItem) error {
	_, err := r.db.Exec(ctx, `INSERT INTO feedback
		(id, organization_id, recipient_id, author_id, feedback_type, sentiment_score, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.OrganizationID, item.RecipientID, item.AuthorID,
		item.Type, item.SentimentScore, item.Body, item.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert feedback", err)
	}
	return nil
}
