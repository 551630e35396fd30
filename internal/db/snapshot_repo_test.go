package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"perfpulse/internal/types"
)

func snapshotKey() types.SnapshotKey {
	return types.SnapshotKey{
		OrganizationID: "org_1",
		ScopeKind:      types.ScopeTeam,
		EntityID:       "team_1",
		PeriodType:     types.PeriodWeekly,
		PeriodStart:    date(2026, time.February, 2),
	}
}

func TestSnapshotRepository_Get_MissIsNilNil(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewSnapshotRepository(dbm)

	dbm.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	snap, err := repo.Get(context.Background(), snapshotKey())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSnapshotRepository_Get_ScanError(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewSnapshotRepository(dbm)

	dbm.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("broken pipe")})

	_, err := repo.Get(context.Background(), snapshotKey())
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestSnapshotRepository_Upsert(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewSnapshotRepository(dbm)

	key := snapshotKey()
	snap := &types.MetricsSnapshot{
		SnapshotKey:        key,
		PeriodEnd:          date(2026, time.February, 9).Add(-time.Nanosecond),
		PeriodLabel:        "Week of Feb 2, 2026",
		TotalGoals:         8,
		CompletedGoals:     4,
		GoalCompletionRate: 50,
		ComputedAt:         date(2026, time.February, 6),
	}

	var capturedSQL string
	var capturedArgs []any
	dbm.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedSQL = args.Get(1).(string)
			capturedArgs = args.Get(2).([]any)
		}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Upsert(context.Background(), snap)
	require.NoError(t, err)

	assert.Contains(t, capturedSQL, "ON CONFLICT (organization_id, scope_kind, entity_id, period_type, period_start)")
	assert.Contains(t, capturedSQL, "DO UPDATE SET")
	require.Len(t, capturedArgs, 33)
	assert.Equal(t, "org_1", capturedArgs[0])
	assert.Equal(t, key.PeriodStart, capturedArgs[4])
	dbm.AssertExpectations(t)
}

func TestSnapshotRepository_Upsert_DBError(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewSnapshotRepository(dbm)

	dbm.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("deadlock detected"))

	err := repo.Upsert(context.Background(), &types.MetricsSnapshot{SnapshotKey: snapshotKey()})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestSnapshotRepository_DeleteComputedBefore(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewSnapshotRepository(dbm)

	var capturedSQL string
	var capturedArgs []any
	dbm.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedSQL = args.Get(1).(string)
			capturedArgs = args.Get(2).([]any)
		}).
		Return(pgconn.NewCommandTag("DELETE 12"), nil)

	cutoff := date(2025, time.February, 1)
	removed, err := repo.DeleteComputedBefore(context.Background(), "org_1", cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(12), removed)
	assert.Contains(t, capturedSQL, "organization_id = $2")
	assert.Equal(t, []any{cutoff, "org_1"}, capturedArgs)
}

func TestSnapshotRepository_DeleteComputedBefore_Global(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewSnapshotRepository(dbm)

	var capturedSQL string
	dbm.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedSQL = args.Get(1).(string)
		}).
		Return(pgconn.NewCommandTag("DELETE 3"), nil)

	_, err := repo.DeleteComputedBefore(context.Background(), "", date(2025, time.February, 1))
	require.NoError(t, err)
	assert.NotContains(t, capturedSQL, "organization_id")
}
