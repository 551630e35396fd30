package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"perfpulse/internal/analytics"
	"perfpulse/internal/types"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weekPredicate(rule analytics.TemporalRule, owner analytics.OwnerFilter) analytics.RecordPredicate {
	return analytics.RecordPredicate{
		OrganizationID: "org_1",
		Owner:          owner,
		Rule:           rule,
		PeriodStart:    date(2026, time.February, 2),
		PeriodEnd:      date(2026, time.February, 9).Add(-time.Nanosecond),
	}
}

func TestRecordRepository_ListGoals_OverlapSQL(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewRecordRepository(dbm)

	pred := weekPredicate(analytics.TemporalOverlap, analytics.OwnerFilter{OwnerIDs: []string{"usr_1", "usr_2"}})

	var capturedSQL string
	var capturedArgs []any
	dbm.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedSQL = args.Get(1).(string)
			capturedArgs = args.Get(2).([]any)
		}).
		Return(newMockRows(nil), nil)

	_, err := repo.ListGoals(context.Background(), pred)
	require.NoError(t, err)

	assert.Contains(t, capturedSQL, "g.status <> 'draft'")
	assert.Contains(t, capturedSQL, "g.owner_id = ANY($2)")
	assert.Contains(t, capturedSQL, "g.completed_at >= $3 AND g.completed_at <= $4")
	assert.Contains(t, capturedSQL, "g.due_date IS NULL OR g.due_date >= $3")

	require.Len(t, capturedArgs, 4)
	assert.Equal(t, "org_1", capturedArgs[0])
	assert.Equal(t, []string{"usr_1", "usr_2"}, capturedArgs[1])
	assert.Equal(t, pred.PeriodStart, capturedArgs[2])
	assert.Equal(t, pred.PeriodEnd, capturedArgs[3])
	dbm.AssertExpectations(t)
}

func TestRecordRepository_ListGoals_ScansRows(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewRecordRepository(dbm)

	due := date(2026, time.March, 1)
	rows := newMockRows([][]any{
		{"goal_1", "org_1", "usr_1", "Ship onboarding revamp", types.GoalInProgress,
			65.0, &due, (*time.Time)(nil), date(2026, time.January, 5), date(2026, time.February, 1)},
	})
	dbm.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	goals, err := repo.ListGoals(context.Background(), weekPredicate(analytics.TemporalOverlap, analytics.OwnerFilter{}))
	require.NoError(t, err)
	require.Len(t, goals, 1)

	assert.Equal(t, "goal_1", goals[0].ID)
	assert.Equal(t, types.GoalInProgress, goals[0].Status)
	assert.InDelta(t, 65.0, goals[0].Progress, 1e-9)
	require.NotNil(t, goals[0].DueDate)
	assert.Equal(t, due, *goals[0].DueDate)
	assert.Nil(t, goals[0].CompletedAt)
}

func TestRecordRepository_ListReviews_CumulativeSQL(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewRecordRepository(dbm)

	pred := weekPredicate(analytics.TemporalCumulative, analytics.OwnerFilter{Department: "engineering"})

	var capturedSQL string
	var capturedArgs []any
	dbm.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedSQL = args.Get(1).(string)
			capturedArgs = args.Get(2).([]any)
		}).
		Return(newMockRows(nil), nil)

	_, err := repo.ListReviews(context.Background(), pred)
	require.NoError(t, err)

	// Cumulative bounds only the upper end; the period start never appears.
	assert.Contains(t, capturedSQL, "u.department = $2")
	assert.Contains(t, capturedSQL, "r.created_at <= $3")
	assert.NotContains(t, capturedSQL, "r.created_at >=")
	require.Len(t, capturedArgs, 3)
	assert.Equal(t, "engineering", capturedArgs[1])
	assert.Equal(t, pred.PeriodEnd, capturedArgs[2])
}

func TestRecordRepository_ListPerformanceRecords_RangeSQL(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewRecordRepository(dbm)

	pred := weekPredicate(analytics.TemporalRange, analytics.OwnerFilter{BusinessUnit: "emea"})

	var capturedSQL string
	dbm.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedSQL = args.Get(1).(string)
		}).
		Return(newMockRows(nil), nil)

	_, err := repo.ListPerformanceRecords(context.Background(), pred)
	require.NoError(t, err)

	assert.Contains(t, capturedSQL, "u.business_unit = $2")
	assert.Contains(t, capturedSQL, "p.metric_date >= $3 AND p.metric_date <= $4")
}

func TestRecordRepository_ListActivityEvents_OrganizationScope(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewRecordRepository(dbm)

	var capturedArgs []any
	dbm.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedArgs = args.Get(2).([]any)
		}).
		Return(newMockRows(nil), nil)

	_, err := repo.ListActivityEvents(context.Background(), weekPredicate(analytics.TemporalCumulative, analytics.OwnerFilter{}))
	require.NoError(t, err)

	// Organization scope adds no owner bind beyond the org ID and the bound.
	require.Len(t, capturedArgs, 2)
	assert.Equal(t, "org_1", capturedArgs[0])
}

func TestRecordRepository_QueryError(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewRecordRepository(dbm)

	dbm.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection reset"))

	_, err := repo.ListFeedback(context.Background(), weekPredicate(analytics.TemporalCumulative, analytics.OwnerFilter{}))
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestMembershipRepository_ListActiveTeamMembers(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewMembershipRepository(dbm)

	var capturedSQL string
	dbm.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedSQL = args.Get(1).(string)
		}).
		Return(newMockRows([][]any{{"usr_1"}, {"usr_2"}}), nil)

	members, err := repo.ListActiveTeamMembers(context.Background(), "org_1", "team_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"usr_1", "usr_2"}, members)
	assert.Contains(t, capturedSQL, "tm.status = 'active'")
}

func TestMembershipRepository_EmptyTeam(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewMembershipRepository(dbm)

	dbm.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(nil), nil)

	members, err := repo.ListActiveTeamMembers(context.Background(), "org_1", "team_empty")
	require.NoError(t, err)
	require.NotNil(t, members)
	assert.Empty(t, members)
}
