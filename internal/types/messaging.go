package types

import "time"

// ReportJobMessage is the SQS payload that triggers one report generation in
// the report worker. PeriodStart is optional; when nil the worker derives the
// current period from the trigger time.
type ReportJobMessage struct {
	JobID          string     `json:"job_id"`
	TraceID        string     `json:"trace_id"`
	OrganizationID string     `json:"organization_id"`
	ReportType     ReportType `json:"report_type"`
	ScopeKind      ScopeKind  `json:"scope_kind"`
	EntityID       string     `json:"entity_id"`
	PeriodStart    *time.Time `json:"period_start,omitempty"`
	TriggeredAt    time.Time  `json:"triggered_at"`
}
