package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfpulse/internal/types"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBoundariesWeekly(t *testing.T) {
	// Wednesday 2026-02-04 falls in the week starting Monday 2026-02-02.
	p, err := Boundaries(types.PeriodWeekly, date(2026, time.February, 4))
	require.NoError(t, err)

	assert.Equal(t, date(2026, time.February, 2), p.Start)
	assert.Equal(t, date(2026, time.February, 9).Add(-time.Nanosecond), p.End)
	assert.Equal(t, "Week of Feb 2, 2026", p.Label)
}

func TestBoundariesWeeklyOnSunday(t *testing.T) {
	// Sunday belongs to the week that started the previous Monday.
	p, err := Boundaries(types.PeriodWeekly, date(2026, time.February, 8))
	require.NoError(t, err)
	assert.Equal(t, date(2026, time.February, 2), p.Start)
}

func TestBoundariesCalendarPeriods(t *testing.T) {
	tests := []struct {
		name       string
		periodType types.PeriodType
		ref        time.Time
		wantStart  time.Time
		wantEnd    time.Time
		wantLabel  string
	}{
		{
			name:       "monthly mid-month",
			periodType: types.PeriodMonthly,
			ref:        date(2026, time.February, 15),
			wantStart:  date(2026, time.February, 1),
			wantEnd:    date(2026, time.March, 1).Add(-time.Nanosecond),
			wantLabel:  "February 2026",
		},
		{
			name:       "quarterly first quarter",
			periodType: types.PeriodQuarterly,
			ref:        date(2026, time.March, 31),
			wantStart:  date(2026, time.January, 1),
			wantEnd:    date(2026, time.April, 1).Add(-time.Nanosecond),
			wantLabel:  "Q1 2026",
		},
		{
			name:       "quarterly fourth quarter",
			periodType: types.PeriodQuarterly,
			ref:        date(2025, time.November, 2),
			wantStart:  date(2025, time.October, 1),
			wantEnd:    date(2026, time.January, 1).Add(-time.Nanosecond),
			wantLabel:  "Q4 2025",
		},
		{
			name:       "yearly",
			periodType: types.PeriodYearly,
			ref:        date(2026, time.July, 4),
			wantStart:  date(2026, time.January, 1),
			wantEnd:    date(2027, time.January, 1).Add(-time.Nanosecond),
			wantLabel:  "2026",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Boundaries(tt.periodType, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, p.Start)
			assert.Equal(t, tt.wantEnd, p.End)
			assert.Equal(t, tt.wantLabel, p.Label)
		})
	}
}

func TestBoundariesContainReference(t *testing.T) {
	refs := []time.Time{
		date(2024, time.February, 29), // leap day
		date(2025, time.December, 31),
		date(2026, time.January, 1),
		date(2026, time.June, 15),
	}
	for _, periodType := range []types.PeriodType{
		types.PeriodWeekly, types.PeriodMonthly, types.PeriodQuarterly, types.PeriodYearly,
	} {
		for _, ref := range refs {
			p, err := Boundaries(periodType, ref)
			require.NoError(t, err)
			assert.False(t, ref.Before(p.Start), "%s %s: start after ref", periodType, ref)
			assert.False(t, ref.After(p.End), "%s %s: end before ref", periodType, ref)
		}
	}
}

func TestBoundariesDeterministic(t *testing.T) {
	ref := date(2026, time.August, 28)
	p1, err := Boundaries(types.PeriodMonthly, ref)
	require.NoError(t, err)
	p2, err := Boundaries(types.PeriodMonthly, ref)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestBoundariesUnknownPeriodTypeFailsFast(t *testing.T) {
	_, err := Boundaries(types.PeriodType("fortnightly"), date(2026, time.January, 1))
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationPeriodType, appErr.Code)
}

func TestPreviousShiftsByCalendarUnit(t *testing.T) {
	tests := []struct {
		name       string
		periodType types.PeriodType
		start      time.Time
		wantStart  time.Time
		wantEnd    time.Time
	}{
		{
			name:       "weekly",
			periodType: types.PeriodWeekly,
			start:      date(2026, time.February, 2),
			wantStart:  date(2026, time.January, 26),
			wantEnd:    date(2026, time.February, 2).Add(-time.Nanosecond),
		},
		{
			name:       "monthly into shorter month",
			periodType: types.PeriodMonthly,
			start:      date(2026, time.March, 1),
			wantStart:  date(2026, time.February, 1),
			wantEnd:    date(2026, time.March, 1).Add(-time.Nanosecond),
		},
		{
			name:       "quarterly across year boundary",
			periodType: types.PeriodQuarterly,
			start:      date(2026, time.January, 1),
			wantStart:  date(2025, time.October, 1),
			wantEnd:    date(2026, time.January, 1).Add(-time.Nanosecond),
		},
		{
			name:       "yearly",
			periodType: types.PeriodYearly,
			start:      date(2026, time.January, 1),
			wantStart:  date(2025, time.January, 1),
			wantEnd:    date(2026, time.January, 1).Add(-time.Nanosecond),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Previous(tt.periodType, tt.start)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, p.Start)
			assert.Equal(t, tt.wantEnd, p.End)
		})
	}
}

func TestPreviousRederivationIdempotent(t *testing.T) {
	for _, periodType := range []types.PeriodType{
		types.PeriodWeekly, types.PeriodMonthly, types.PeriodQuarterly, types.PeriodYearly,
	} {
		base, err := Boundaries(periodType, date(2026, time.May, 20))
		require.NoError(t, err)

		prev, err := Previous(periodType, base.Start)
		require.NoError(t, err)

		rederived, err := Boundaries(periodType, prev.Start)
		require.NoError(t, err)
		assert.Equal(t, prev, rederived, "period type %s", periodType)
	}
}

func TestPreviousUnknownPeriodType(t *testing.T) {
	_, err := Previous(types.PeriodType("daily"), date(2026, time.January, 1))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationPeriodType, appErr.Code)
}
