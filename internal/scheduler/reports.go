package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"perfpulse/internal/analytics"
	"perfpulse/internal/types"
)

// ScheduleStore reads and advances recurring report schedules. Implemented by
// db.ScheduleRepository.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]types.ReportSchedule, error)
	AdvanceNextRun(ctx context.Context, id string, from, next time.Time) error
}

// JobTrigger enqueues report generation jobs. Implemented by
// queue.ReportTrigger.
type JobTrigger interface {
	TriggerReport(ctx context.Context, msg types.ReportJobMessage, reason string) error
}

// ReportScheduler walks due report schedules, enqueues one generation job per
// schedule, and advances each schedule to the start of its next period.
type ReportScheduler struct {
	schedules ScheduleStore
	trigger   JobTrigger
	batchSize int
	logger    *slog.Logger
}

// NewReportScheduler creates a ReportScheduler. batchSize bounds how many
// schedules one ListDue round fetches.
func NewReportScheduler(schedules ScheduleStore, trigger JobTrigger, batchSize int, logger *slog.Logger) *ReportScheduler {
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportScheduler{
		schedules: schedules,
		trigger:   trigger,
		batchSize: batchSize,
		logger:    logger,
	}
}

// TriggerDueReports processes every schedule due at now and returns the
// number of jobs enqueued. A failure for one schedule is logged and skipped;
// the schedule stays due and is retried on the next run.
func (s *ReportScheduler) TriggerDueReports(ctx context.Context, now time.Time) (int, error) {
	total := 0

	for {
		due, err := s.schedules.ListDue(ctx, now, s.batchSize)
		if err != nil {
			return total, fmt.Errorf("listing due schedules: %w", err)
		}
		if len(due) == 0 {
			break
		}

		s.logger.InfoContext(ctx, "processing schedule batch",
			"batch_size", len(due),
			"total_so_far", total,
		)

		progressed := 0
		for _, schedule := range due {
			if err := s.processSchedule(ctx, schedule, now); err != nil {
				s.logger.ErrorContext(ctx, "failed to process report schedule",
					"schedule_id", schedule.ID,
					"organization_id", schedule.OrganizationID,
					"error", err,
				)
				continue
			}
			total++
			progressed++
		}

		if len(due) < s.batchSize {
			break
		}
		// No forward progress means every schedule in the batch failed and
		// stayed due; break instead of looping on the same rows.
		if progressed == 0 {
			s.logger.WarnContext(ctx, "no progress in schedule batch, stopping",
				"batch_size", len(due),
			)
			break
		}
	}

	s.logger.InfoContext(ctx, "schedule trigger cycle complete", "total_triggered", total)
	return total, nil
}

// processSchedule enqueues the job for one schedule and advances its next run
// time with a compare-and-set on the previous value.
func (s *ReportScheduler) processSchedule(ctx context.Context, schedule types.ReportSchedule, now time.Time) error {
	msg := types.ReportJobMessage{
		OrganizationID: schedule.OrganizationID,
		ReportType:     schedule.ReportType,
		ScopeKind:      schedule.ScopeKind,
		EntityID:       schedule.EntityID,
		TriggeredAt:    now,
	}
	if err := s.trigger.TriggerReport(ctx, msg, "schedule_due"); err != nil {
		return fmt.Errorf("enqueueing job: %w", err)
	}

	next, err := NextRunAfter(schedule.ReportType, now)
	if err != nil {
		return fmt.Errorf("computing next run: %w", err)
	}
	if err := s.schedules.AdvanceNextRun(ctx, schedule.ID, schedule.NextRunAt, next); err != nil {
		return fmt.Errorf("advancing schedule: %w", err)
	}
	return nil
}

// NextRunAfter returns the start of the period following the one containing
// now, at the cadence of the given report type. Comparative analysis reports
// run on a monthly cadence.
func NextRunAfter(reportType types.ReportType, now time.Time) (time.Time, error) {
	periodType := scheduleCadence(reportType)

	period, err := analytics.Boundaries(periodType, now)
	if err != nil {
		return time.Time{}, err
	}
	// Period end is the next period's start minus one nanosecond.
	return period.End.Add(time.Nanosecond), nil
}

func scheduleCadence(reportType types.ReportType) types.PeriodType {
	switch reportType {
	case types.ReportWeeklySummary:
		return types.PeriodWeekly
	case types.ReportQuarterlyReview:
		return types.PeriodQuarterly
	case types.ReportYearlyIndex:
		return types.PeriodYearly
	default:
		// Monthly cards and comparative analyses run monthly.
		return types.PeriodMonthly
	}
}
