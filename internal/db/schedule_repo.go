package db

import (
	"context"
	"time"

	"perfpulse/internal/types"
)

// ScheduleRepository reads and advances recurring report schedules for the
// scheduler worker.
type ScheduleRepository struct {
	db DBTX
}

// NewScheduleRepository creates a ScheduleRepository backed by the given
// database connection (pool or transaction).
func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ListDue returns enabled schedules whose next run time has passed, oldest
// first, up to limit rows.
func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]types.ReportSchedule, error) {
	query := `SELECT id, organization_id, report_type, scope_kind, entity_id,
			enabled, next_run_at, created_at, updated_at
		FROM report_schedules
		WHERE enabled = true AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due schedules", err)
	}
	defer rows.Close()

	var schedules []types.ReportSchedule
	for rows.Next() {
		var s types.ReportSchedule
		if err := rows.Scan(
			&s.ID, &s.OrganizationID, &s.ReportType, &s.ScopeKind, &s.EntityID,
			&s.Enabled, &s.NextRunAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan schedule", err)
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "schedule row iteration failed", err)
	}
	return schedules, nil
}

// AdvanceNextRun moves a schedule's next run time forward after its job has
// been enqueued. The guard on the previous value keeps a concurrently
// advanced schedule from being advanced twice.
func (r *ScheduleRepository) AdvanceNextRun(ctx context.Context, id string, from, next time.Time) error {
	query := `UPDATE report_schedules
		SET next_run_at = $1, updated_at = now()
		WHERE id = $2 AND next_run_at = $3`

	_, err := r.db.Exec(ctx, query, next, id, from)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to advance schedule", err)
	}
	return nil
}
