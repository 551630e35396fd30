// Package scheduler implements the scheduled job services for the PerfPulse
// platform: walking due report schedules into queued generation jobs, and
// retention cleanup of computed snapshots and report documents.
package scheduler

import "time"

// TaskType identifies which maintenance service handles an EventBridge event.
type TaskType string

const (
	TaskGenerateScheduledReports TaskType = "generate_scheduled_reports"
	TaskCleanupSnapshots         TaskType = "cleanup_snapshots"
	TaskCleanupReports           TaskType = "cleanup_reports"
)

// MaintenancePayload is the JSON payload sent by EventBridge to the scheduler
// Lambda. ReferenceTime lets a manual invocation pin "now" for deterministic
// execution and backfilling; when nil the current UTC time is used.
type MaintenancePayload struct {
	Task          TaskType   `json:"task"`
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}
