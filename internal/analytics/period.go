// Package analytics implements the PerfPulse analytics core: the period
// calculator, scope resolver, aggregation engine, historical series builder,
// trend analysis engine, and report composer.
package analytics

import (
	"fmt"
	"time"

	"perfpulse/internal/types"
)

// Boundaries maps a (period type, reference date) pair to the calendar-aligned
// period containing the reference date. Weekly periods start Monday and end
// Sunday at the last nanosecond of the day; monthly, quarterly, and yearly
// periods use calendar boundaries. The reference date is assumed to be
// pre-normalized to the organization's timezone.
//
// Boundaries is a pure function: identical inputs always yield the identical
// period, and Start <= ref <= End.
func Boundaries(periodType types.PeriodType, ref time.Time) (types.Period, error) {
	switch periodType {
	case types.PeriodWeekly:
		start := startOfWeek(ref)
		return types.Period{
			Type:  periodType,
			Start: start,
			End:   start.AddDate(0, 0, 7).Add(-time.Nanosecond),
			Label: fmt.Sprintf("Week of %s", start.Format("Jan 2, 2006")),
		}, nil
	case types.PeriodMonthly:
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		return types.Period{
			Type:  periodType,
			Start: start,
			End:   start.AddDate(0, 1, 0).Add(-time.Nanosecond),
			Label: start.Format("January 2006"),
		}, nil
	case types.PeriodQuarterly:
		q := (int(ref.Month()) - 1) / 3
		start := time.Date(ref.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, ref.Location())
		return types.Period{
			Type:  periodType,
			Start: start,
			End:   start.AddDate(0, 3, 0).Add(-time.Nanosecond),
			Label: fmt.Sprintf("Q%d %d", q+1, ref.Year()),
		}, nil
	case types.PeriodYearly:
		start := time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, ref.Location())
		return types.Period{
			Type:  periodType,
			Start: start,
			End:   start.AddDate(1, 0, 0).Add(-time.Nanosecond),
			Label: fmt.Sprintf("%d", ref.Year()),
		}, nil
	default:
		return types.Period{}, types.NewAppError(
			types.ErrCodeValidationPeriodType,
			fmt.Sprintf("unrecognized period type: %q", periodType),
			nil,
		)
	}
}

// Previous returns the period immediately before the period whose start is
// given. The start is shifted by exactly one unit of the period type and the
// boundaries are re-derived from the shifted date, so months, quarters, and
// years of different lengths are handled correctly.
func Previous(periodType types.PeriodType, start time.Time) (types.Period, error) {
	var shifted time.Time
	switch periodType {
	case types.PeriodWeekly:
		shifted = start.AddDate(0, 0, -7)
	case types.PeriodMonthly:
		shifted = start.AddDate(0, -1, 0)
	case types.PeriodQuarterly:
		shifted = start.AddDate(0, -3, 0)
	case types.PeriodYearly:
		shifted = start.AddDate(-1, 0, 0)
	default:
		return types.Period{}, types.NewAppError(
			types.ErrCodeValidationPeriodType,
			fmt.Sprintf("unrecognized period type: %q", periodType),
			nil,
		)
	}
	return Boundaries(periodType, shifted)
}

// startOfWeek returns the Monday 00:00:00 of the week containing t.
func startOfWeek(t time.Time) time.Time {
	// time.Weekday numbers Sunday as 0; shift so Monday is day 0.
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -offset)
}
