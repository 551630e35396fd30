package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfpulse/internal/types"
)

// stubCache is a TTL-less SnapshotCache for engine tests; TTL behavior is
// covered by the cache package's own tests.
type stubCache struct {
	mu      sync.Mutex
	entries map[string]*types.MetricsSnapshot
	TTLs    []time.Duration
}

func (c *stubCache) Get(key types.SnapshotKey) (*types.MetricsSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.entries[flightKey(key)]
	return snap, ok
}

func (c *stubCache) Set(key types.SnapshotKey, snap *types.MetricsSnapshot, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]*types.MetricsSnapshot)
	}
	c.entries[flightKey(key)] = snap
	c.TTLs = append(c.TTLs, ttl)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAggregator(records RecordStore, snapshots SnapshotStore, cache SnapshotCache, telemetry Telemetry) *Aggregator {
	return NewAggregator(
		records,
		snapshots,
		cache,
		NewScopeResolver(&MockMembershipReader{}),
		telemetry,
		testLogger(),
		types.FixedClock{T: date(2026, time.February, 6)},
	)
}

func weekOf(t *testing.T, ref time.Time) types.Period {
	t.Helper()
	p, err := Boundaries(types.PeriodWeekly, ref)
	require.NoError(t, err)
	return p
}

func TestComputeSnapshotGoalClassification(t *testing.T) {
	period := weekOf(t, date(2026, time.February, 4))
	inPeriod := date(2026, time.February, 3)

	goals := []types.Goal{
		// Two drafts, excluded entirely.
		{ID: "g1", OrganizationID: "org_1", OwnerID: "usr_1", Status: types.GoalDraft, CreatedAt: inPeriod},
		{ID: "g2", OrganizationID: "org_1", OwnerID: "usr_1", Status: types.GoalDraft, CreatedAt: inPeriod},
		// Four completed within the period.
		{ID: "g3", OrganizationID: "org_1", OwnerID: "usr_1", Status: types.GoalCompleted, Progress: 100, CompletedAt: ptr(inPeriod), CreatedAt: date(2026, time.January, 1)},
		{ID: "g4", OrganizationID: "org_1", OwnerID: "usr_1", Status: types.GoalCompleted, Progress: 100, CompletedAt: ptr(inPeriod), CreatedAt: date(2026, time.January, 1)},
		{ID: "g5", OrganizationID: "org_1", OwnerID: "usr_1", Status: types.GoalCompleted, Progress: 100, CompletedAt: ptr(inPeriod), CreatedAt: date(2026, time.January, 1)},
		{ID: "g6", OrganizationID: "org_1", OwnerID: "usr_1", Status: types.GoalCompleted, Progress: 100, CompletedAt: ptr(inPeriod), CreatedAt: date(2026, time.January, 1)},
		// Overdue: incomplete, due before period end.
		{ID: "g7", OrganizationID: "org_1", OwnerID: "usr_1", Status: types.GoalInProgress, Progress: 80, DueDate: ptr(inPeriod), CreatedAt: date(2026, time.January, 1)},
		// At risk: incomplete, low progress, not yet due.
		{ID: "g8", OrganizationID: "org_1", OwnerID: "usr_1", Status: types.GoalInProgress, Progress: 20, DueDate: ptr(date(2026, time.June, 1)), CreatedAt: date(2026, time.January, 1)},
		// On track: incomplete, progress at the risk threshold.
		{ID: "g9", OrganizationID: "org_1", OwnerID: "usr_1", Status: types.GoalInProgress, Progress: 50, CreatedAt: date(2026, time.January, 1)},
		// Not started but plenty of runway; at risk by progress.
		{ID: "g10", OrganizationID: "org_1", OwnerID: "usr_1", Status: types.GoalNotStarted, Progress: 0, DueDate: ptr(date(2026, time.June, 1)), CreatedAt: date(2026, time.January, 1)},
	}

	agg := newTestAggregator(&MockRecordStore{Goals: goals}, &MockSnapshotStore{}, nil, nil)

	snap, err := agg.ComputeSnapshot(context.Background(), "org_1", types.ScopeUser, "usr_1", period)
	require.NoError(t, err)

	assert.Equal(t, 8, snap.TotalGoals)
	assert.Equal(t, 4, snap.CompletedGoals)
	assert.Equal(t, 3, snap.InProgressGoals)
	assert.Equal(t, 1, snap.NotStartedGoals)
	assert.Equal(t, 5, snap.OnTrackGoals)
	assert.Equal(t, 2, snap.AtRiskGoals)
	assert.Equal(t, 1, snap.OverdueGoals)
	assert.InDelta(t, 50.0, snap.GoalCompletionRate, 1e-9)
	assert.InDelta(t, 68.75, snap.AvgGoalProgress, 1e-9) // (400+80+20+50+0)/8
}

func TestComputeSnapshotTemporalRulesPerCategory(t *testing.T) {
	period := weekOf(t, date(2026, time.February, 4))
	records := &MockRecordStore{}
	agg := newTestAggregator(records, &MockSnapshotStore{}, nil, nil)

	_, err := agg.ComputeSnapshot(context.Background(), "org_1", types.ScopeOrganization, "org_1", period)
	require.NoError(t, err)

	require.Len(t, records.Predicates, 5)
	rules := map[TemporalRule]int{}
	for _, pred := range records.Predicates {
		rules[pred.Rule]++
		assert.Equal(t, period.Start, pred.PeriodStart)
		assert.Equal(t, period.End, pred.PeriodEnd)
	}
	assert.Equal(t, 1, rules[TemporalOverlap])
	assert.Equal(t, 3, rules[TemporalCumulative])
	assert.Equal(t, 1, rules[TemporalRange])
}

func TestComputeSnapshotEmptyDataIsZeroNotError(t *testing.T) {
	period := weekOf(t, date(2026, time.February, 4))
	agg := newTestAggregator(&MockRecordStore{}, &MockSnapshotStore{}, nil, nil)

	snap, err := agg.ComputeSnapshot(context.Background(), "org_1", types.ScopeTeam, "team_empty", period)
	require.NoError(t, err)

	assert.Zero(t, snap.TotalGoals)
	assert.Zero(t, snap.GoalCompletionRate)
	assert.Zero(t, snap.AvgReviewRating)
	assert.Zero(t, snap.AvgSentiment)
	assert.Zero(t, snap.AvgPerformanceScore)
	assert.Zero(t, snap.ActiveUsers)
}

func TestComputeSnapshotReviewAndFeedbackAverages(t *testing.T) {
	period := weekOf(t, date(2026, time.February, 4))
	created := date(2026, time.January, 10)

	records := &MockRecordStore{
		Reviews: []types.Review{
			{OrganizationID: "org_1", RevieweeID: "usr_1", Status: types.ReviewCompleted, Rating: ptr(8.0), CreatedAt: created},
			{OrganizationID: "org_1", RevieweeID: "usr_1", Status: types.ReviewCompleted, Rating: ptr(6.0), CreatedAt: created},
			{OrganizationID: "org_1", RevieweeID: "usr_1", Status: types.ReviewPending, CreatedAt: created},
			{OrganizationID: "org_1", RevieweeID: "usr_1", Status: types.ReviewInProcess, CreatedAt: created},
		},
		Feedback: []types.FeedbackItem{
			{OrganizationID: "org_1", RecipientID: "usr_1", Type: types.FeedbackPositive, SentimentScore: ptr(0.8), CreatedAt: created},
			{OrganizationID: "org_1", RecipientID: "usr_1", Type: types.FeedbackConstructive, SentimentScore: ptr(-0.2), CreatedAt: created},
			{OrganizationID: "org_1", RecipientID: "usr_1", Type: types.FeedbackNeutral, CreatedAt: created},
		},
	}
	agg := newTestAggregator(records, &MockSnapshotStore{}, nil, nil)

	snap, err := agg.ComputeSnapshot(context.Background(), "org_1", types.ScopeUser, "usr_1", period)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.TotalReviews)
	assert.Equal(t, 2, snap.CompletedReviews)
	assert.Equal(t, 2, snap.PendingReviews)
	assert.InDelta(t, 7.0, snap.AvgReviewRating, 1e-9) // unrated reviews excluded

	assert.Equal(t, 3, snap.TotalFeedback)
	assert.Equal(t, 1, snap.PositiveFeedback)
	assert.Equal(t, 1, snap.ConstructiveFeedback)
	assert.InDelta(t, 0.3, snap.AvgSentiment, 1e-9) // unscored items excluded
}

func TestComputeSnapshotPerformanceAndActivity(t *testing.T) {
	period := weekOf(t, date(2026, time.February, 4))
	inPeriod := date(2026, time.February, 3)

	records := &MockRecordStore{
		Performance: []types.PerformanceRecord{
			{OrganizationID: "org_1", UserID: "usr_1", MetricDate: inPeriod, Productivity: 8, Quality: 7, Collaboration: 6, PerformanceScore: 7, ActiveTimeMinutes: 420, EngagementScore: 80},
			{OrganizationID: "org_1", UserID: "usr_2", MetricDate: inPeriod, Productivity: 6, Quality: 9, Collaboration: 8, PerformanceScore: 8, ActiveTimeMinutes: 300, EngagementScore: 60},
			// Outside the range window, excluded from performance only.
			{OrganizationID: "org_1", UserID: "usr_1", MetricDate: date(2026, time.January, 1), Productivity: 1, Quality: 1, Collaboration: 1, PerformanceScore: 1, ActiveTimeMinutes: 60, EngagementScore: 10},
		},
		Activity: []types.ActivityEvent{
			{OrganizationID: "org_1", ActorID: "usr_1", OccurredAt: inPeriod},
			{OrganizationID: "org_1", ActorID: "usr_1", OccurredAt: date(2026, time.January, 15)},
			{OrganizationID: "org_1", ActorID: "usr_2", OccurredAt: inPeriod},
		},
	}
	agg := newTestAggregator(records, &MockSnapshotStore{}, nil, nil)

	snap, err := agg.ComputeSnapshot(context.Background(), "org_1", types.ScopeOrganization, "org_1", period)
	require.NoError(t, err)

	assert.InDelta(t, 7.0, snap.AvgProductivity, 1e-9)
	assert.InDelta(t, 8.0, snap.AvgQuality, 1e-9)
	assert.InDelta(t, 7.0, snap.AvgCollaboration, 1e-9)
	assert.InDelta(t, 7.5, snap.AvgPerformanceScore, 1e-9)
	assert.InDelta(t, 6.0, snap.WorkloadHours, 1e-9) // 720 minutes over 2 records
	assert.InDelta(t, 70.0, snap.WellbeingScore, 1e-9)

	// Activity is cumulative to period end, so the January event counts.
	assert.Equal(t, 3, snap.TotalActivities)
	assert.Equal(t, 2, snap.ActiveUsers)
}

func TestComputeSnapshotSubAggregationFailureFailsWhole(t *testing.T) {
	period := weekOf(t, date(2026, time.February, 4))
	records := &MockRecordStore{
		FailCategory: "feedback",
		CategoryErr:  errors.New("relation does not exist"),
	}
	store := &MockSnapshotStore{}
	agg := newTestAggregator(records, store, nil, nil)

	_, err := agg.ComputeSnapshot(context.Background(), "org_1", types.ScopeUser, "usr_1", period)
	require.Error(t, err)
	assert.ErrorContains(t, err, "feedback sub-aggregation")
	assert.Zero(t, store.Upserts, "no partial snapshot may be persisted")
}

func TestGetOrComputePersistsAndCaches(t *testing.T) {
	store := &MockSnapshotStore{}
	cache := &stubCache{}
	telemetry := &MockTelemetry{}
	agg := newTestAggregator(&MockRecordStore{}, store, cache, telemetry)

	snap, err := agg.GetOrCompute(context.Background(), "org_1", types.ScopeUser, "usr_1", types.PeriodWeekly, date(2026, time.February, 4))
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, 1, store.Upserts)
	require.Len(t, cache.TTLs, 1)
	assert.Equal(t, TTLWeekly, cache.TTLs[0])
	assert.Equal(t, []ComputeSource{SourceComputed}, telemetry.SnapshotEvents)

	// Second call hits the in-process cache, not the store or a recompute.
	again, err := agg.GetOrCompute(context.Background(), "org_1", types.ScopeUser, "usr_1", types.PeriodWeekly, date(2026, time.February, 4))
	require.NoError(t, err)
	assert.Same(t, snap, again)
	assert.Equal(t, 1, store.Upserts)
	assert.Equal(t, []ComputeSource{SourceComputed, SourceCache}, telemetry.SnapshotEvents)
}

func TestGetOrComputeStoreHitBackfillsCache(t *testing.T) {
	period := weekOf(t, date(2026, time.February, 4))
	key := types.SnapshotKey{
		OrganizationID: "org_1",
		ScopeKind:      types.ScopeUser,
		EntityID:       "usr_1",
		PeriodType:     types.PeriodWeekly,
		PeriodStart:    period.Start,
	}
	stored := &types.MetricsSnapshot{SnapshotKey: key, TotalGoals: 42}
	store := &MockSnapshotStore{Snapshots: map[string]*types.MetricsSnapshot{flightKey(key): stored}}
	cache := &stubCache{}
	telemetry := &MockTelemetry{}
	agg := newTestAggregator(&MockRecordStore{}, store, cache, telemetry)

	snap, err := agg.GetOrComputePeriod(context.Background(), "org_1", types.ScopeUser, "usr_1", period)
	require.NoError(t, err)
	assert.Same(t, stored, snap)
	assert.Zero(t, store.Upserts)
	assert.Equal(t, []ComputeSource{SourceStore}, telemetry.SnapshotEvents)

	cached, ok := cache.Get(key)
	require.True(t, ok)
	assert.Same(t, stored, cached)
}

func TestGetOrComputeStoreFailure(t *testing.T) {
	store := &MockSnapshotStore{GetErr: errors.New("pool exhausted")}
	agg := newTestAggregator(&MockRecordStore{}, store, nil, nil)

	_, err := agg.GetOrCompute(context.Background(), "org_1", types.ScopeUser, "usr_1", types.PeriodWeekly, date(2026, time.February, 4))
	assert.ErrorContains(t, err, "snapshot store lookup")
}

func TestGetOrComputeWorksWithoutCache(t *testing.T) {
	store := &MockSnapshotStore{}
	agg := newTestAggregator(&MockRecordStore{}, store, nil, nil)

	_, err := agg.GetOrCompute(context.Background(), "org_1", types.ScopeUser, "usr_1", types.PeriodMonthly, date(2026, time.February, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Upserts)
}

func TestSanitizeSnapshotCoercesThenClamps(t *testing.T) {
	snap := &types.MetricsSnapshot{
		AvgGoalProgress:     math.NaN(),
		GoalCompletionRate:  1e9,
		WorkloadHours:       -5000,
		WellbeingScore:      math.Inf(1),
		AvgReviewRating:     math.NaN(),
		AvgSentiment:        -3.7,
		AvgProductivity:     42.123,
		AvgQuality:          7.126,
		AvgCollaboration:    math.Inf(-1),
		AvgPerformanceScore: 9.994,
	}

	SanitizeSnapshot(snap)

	// NaN and infinities coerce to zero before any clamping.
	assert.Zero(t, snap.AvgGoalProgress)
	assert.Zero(t, snap.WellbeingScore)
	assert.Zero(t, snap.AvgReviewRating)
	assert.Zero(t, snap.AvgCollaboration)

	// Rates clamp to +/-999.99, scores to +/-9.99.
	assert.InDelta(t, 999.99, snap.GoalCompletionRate, 1e-9)
	assert.InDelta(t, -999.99, snap.WorkloadHours, 1e-9)
	assert.InDelta(t, -3.7, snap.AvgSentiment, 1e-9)
	assert.InDelta(t, 9.99, snap.AvgProductivity, 1e-9)
	assert.InDelta(t, 7.13, snap.AvgQuality, 1e-9)
	assert.InDelta(t, 9.99, snap.AvgPerformanceScore, 1e-9)
}

func TestCacheTTLProportionalToPeriod(t *testing.T) {
	assert.Equal(t, TTLWeekly, CacheTTL(types.PeriodWeekly))
	assert.Equal(t, TTLMonthly, CacheTTL(types.PeriodMonthly))
	assert.Equal(t, TTLQuarterly, CacheTTL(types.PeriodQuarterly))
	assert.Equal(t, TTLYearly, CacheTTL(types.PeriodYearly))
}
