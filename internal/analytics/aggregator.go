package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"perfpulse/internal/types"
)

// Snapshot cache TTLs are proportional to period granularity: short periods
// change often, long ones barely move between computations.
const (
	TTLWeekly    = 1 * time.Hour
	TTLMonthly   = 6 * time.Hour
	TTLQuarterly = 12 * time.Hour
	TTLYearly    = 24 * time.Hour
)

// CacheTTL returns the in-process cache TTL for a period type.
func CacheTTL(periodType types.PeriodType) time.Duration {
	switch periodType {
	case types.PeriodMonthly:
		return TTLMonthly
	case types.PeriodQuarterly:
		return TTLQuarterly
	case types.PeriodYearly:
		return TTLYearly
	default:
		return TTLWeekly
	}
}

// RecordStore provides the per-category record reads the aggregation engine
// fans out over. Each method applies the predicate's organization, owner, and
// temporal constraints at the query layer. Implemented by db.RecordRepository.
type RecordStore interface {
	ListGoals(ctx context.Context, pred RecordPredicate) ([]types.Goal, error)
	ListReviews(ctx context.Context, pred RecordPredicate) ([]types.Review, error)
	ListFeedback(ctx context.Context, pred RecordPredicate) ([]types.FeedbackItem, error)
	ListPerformanceRecords(ctx context.Context, pred RecordPredicate) ([]types.PerformanceRecord, error)
	ListActivityEvents(ctx context.Context, pred RecordPredicate) ([]types.ActivityEvent, error)
}

// SnapshotStore is the durable store keyed by the snapshot's natural key.
// Writes are idempotent upserts; Get returns (nil, nil) for a missing key.
// Implemented by db.SnapshotRepository.
type SnapshotStore interface {
	Get(ctx context.Context, key types.SnapshotKey) (*types.MetricsSnapshot, error)
	Upsert(ctx context.Context, snap *types.MetricsSnapshot) error
}

// SnapshotCache is the in-process TTL cache in front of the durable store.
// Implemented by cache.SnapshotCache.
type SnapshotCache interface {
	Get(key types.SnapshotKey) (*types.MetricsSnapshot, bool)
	Set(key types.SnapshotKey, snap *types.MetricsSnapshot, ttl time.Duration)
}

// ComputeSource labels where GetOrCompute found a snapshot, for telemetry.
type ComputeSource string

const (
	SourceCache    ComputeSource = "cache"
	SourceStore    ComputeSource = "store"
	SourceComputed ComputeSource = "computed"
)

// Telemetry receives compute observability events. A nil Telemetry is valid
// and disables emission. Implemented by metrics.CloudWatchTelemetry.
type Telemetry interface {
	RecordSnapshotCompute(ctx context.Context, source ComputeSource, duration time.Duration)
}

// Aggregator computes MetricsSnapshots for (organization, scope, entity,
// period) tuples. Five sub-aggregations run concurrently per snapshot and are
// merged by field union; a failing sub-aggregation fails the whole snapshot
// and nothing partial is persisted.
//
// GetOrCompute coalesces concurrent callers for the same uncached key within
// this process via singleflight. Across processes the check-compute-write
// sequence remains unlocked: two workers may both compute and both upsert,
// which is a redundant-but-safe race because values are deterministic for the
// same underlying data and the write is an idempotent upsert.
type Aggregator struct {
	records   RecordStore
	snapshots SnapshotStore
	cache     SnapshotCache
	scopes    *ScopeResolver
	telemetry Telemetry
	logger    *slog.Logger
	clock     types.Clock

	inflight singleflight.Group
}

// NewAggregator creates an Aggregator. The cache and telemetry may be nil;
// a nil cache disables in-process caching.
func NewAggregator(
	records RecordStore,
	snapshots SnapshotStore,
	cache SnapshotCache,
	scopes *ScopeResolver,
	telemetry Telemetry,
	logger *slog.Logger,
	clock types.Clock,
) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Aggregator{
		records:   records,
		snapshots: snapshots,
		cache:     cache,
		scopes:    scopes,
		telemetry: telemetry,
		logger:    logger,
		clock:     clock,
	}
}

// ComputeSnapshot computes a fresh MetricsSnapshot for the given tuple
// without consulting or writing any cache or store. Zero matching records in
// every category is not an error; it produces a snapshot of zeros.
func (a *Aggregator) ComputeSnapshot(ctx context.Context, orgID string, kind types.ScopeKind, entityID string, period types.Period) (*types.MetricsSnapshot, error) {
	owner, err := a.scopes.Resolve(ctx, orgID, kind, entityID)
	if err != nil {
		return nil, err
	}

	pred := func(rule TemporalRule) RecordPredicate {
		return RecordPredicate{
			OrganizationID: orgID,
			Owner:          owner,
			Rule:           rule,
			PeriodStart:    period.Start,
			PeriodEnd:      period.End,
		}
	}

	var (
		goals       goalMetrics
		reviews     reviewMetrics
		feedback    feedbackMetrics
		performance performanceMetrics
		activity    activityMetrics
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := a.records.ListGoals(gCtx, pred(TemporalOverlap))
		if err != nil {
			return fmt.Errorf("goals sub-aggregation: %w", err)
		}
		goals = aggregateGoals(rows, period.End)
		return nil
	})
	g.Go(func() error {
		rows, err := a.records.ListReviews(gCtx, pred(TemporalCumulative))
		if err != nil {
			return fmt.Errorf("reviews sub-aggregation: %w", err)
		}
		reviews = aggregateReviews(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := a.records.ListFeedback(gCtx, pred(TemporalCumulative))
		if err != nil {
			return fmt.Errorf("feedback sub-aggregation: %w", err)
		}
		feedback = aggregateFeedback(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := a.records.ListPerformanceRecords(gCtx, pred(TemporalRange))
		if err != nil {
			return fmt.Errorf("performance sub-aggregation: %w", err)
		}
		performance = aggregatePerformance(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := a.records.ListActivityEvents(gCtx, pred(TemporalCumulative))
		if err != nil {
			return fmt.Errorf("activity sub-aggregation: %w", err)
		}
		activity = aggregateActivity(rows)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &types.MetricsSnapshot{
		SnapshotKey: types.SnapshotKey{
			OrganizationID: orgID,
			ScopeKind:      kind,
			EntityID:       entityID,
			PeriodType:     period.Type,
			PeriodStart:    period.Start,
		},
		PeriodEnd:   period.End,
		PeriodLabel: period.Label,

		TotalGoals:         goals.total,
		CompletedGoals:     goals.completed,
		InProgressGoals:    goals.inProgress,
		NotStartedGoals:    goals.notStarted,
		OnTrackGoals:       goals.onTrack,
		AtRiskGoals:        goals.atRisk,
		OverdueGoals:       goals.overdue,
		AvgGoalProgress:    goals.avgProgress,
		GoalCompletionRate: goals.completionRate,

		TotalReviews:     reviews.total,
		CompletedReviews: reviews.completed,
		PendingReviews:   reviews.pending,
		AvgReviewRating:  reviews.avgRating,

		TotalFeedback:        feedback.total,
		PositiveFeedback:     feedback.positive,
		ConstructiveFeedback: feedback.constructive,
		AvgSentiment:         feedback.avgSentiment,

		AvgProductivity:     performance.avgProductivity,
		AvgQuality:          performance.avgQuality,
		AvgCollaboration:    performance.avgCollaboration,
		AvgPerformanceScore: performance.avgScore,
		WorkloadHours:       performance.workloadHours,
		WellbeingScore:      performance.wellbeing,

		TotalActivities: activity.total,
		ActiveUsers:     activity.distinctActors,

		ComputedAt: a.clock.Now(),
	}

	return snap, nil
}

// GetOrCompute returns the snapshot for the period containing ref, consulting
// the in-process cache, then the durable store, then computing. A computed
// snapshot is sanitized, upserted, and cached before it is returned.
// Concurrent callers for the same key within this process share one
// computation.
func (a *Aggregator) GetOrCompute(ctx context.Context, orgID string, kind types.ScopeKind, entityID string, periodType types.PeriodType, ref time.Time) (*types.MetricsSnapshot, error) {
	period, err := Boundaries(periodType, ref)
	if err != nil {
		return nil, err
	}
	return a.GetOrComputePeriod(ctx, orgID, kind, entityID, period)
}

// GetOrComputePeriod is GetOrCompute for an already-derived period.
func (a *Aggregator) GetOrComputePeriod(ctx context.Context, orgID string, kind types.ScopeKind, entityID string, period types.Period) (*types.MetricsSnapshot, error) {
	key := types.SnapshotKey{
		OrganizationID: orgID,
		ScopeKind:      kind,
		EntityID:       entityID,
		PeriodType:     period.Type,
		PeriodStart:    period.Start,
	}

	start := a.clock.Now()

	if a.cache != nil {
		if snap, ok := a.cache.Get(key); ok {
			a.emit(ctx, SourceCache, start)
			return snap, nil
		}
	}

	if snap, err := a.snapshots.Get(ctx, key); err != nil {
		return nil, fmt.Errorf("snapshot store lookup: %w", err)
	} else if snap != nil {
		if a.cache != nil {
			a.cache.Set(key, snap, CacheTTL(period.Type))
		}
		a.emit(ctx, SourceStore, start)
		return snap, nil
	}

	v, err, _ := a.inflight.Do(flightKey(key), func() (any, error) {
		snap, err := a.ComputeSnapshot(ctx, orgID, kind, entityID, period)
		if err != nil {
			return nil, err
		}

		SanitizeSnapshot(snap)
		if err := a.snapshots.Upsert(ctx, snap); err != nil {
			return nil, fmt.Errorf("persisting snapshot: %w", err)
		}
		if a.cache != nil {
			a.cache.Set(key, snap, CacheTTL(period.Type))
		}

		a.logger.InfoContext(ctx, "snapshot computed",
			"organization_id", orgID,
			"scope_kind", string(kind),
			"entity_id", entityID,
			"period_type", string(period.Type),
			"period_label", period.Label,
		)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}

	a.emit(ctx, SourceComputed, start)
	return v.(*types.MetricsSnapshot), nil
}

func (a *Aggregator) emit(ctx context.Context, source ComputeSource, start time.Time) {
	if a.telemetry == nil {
		return
	}
	a.telemetry.RecordSnapshotCompute(ctx, source, a.clock.Now().Sub(start))
}

// flightKey serializes a snapshot key for singleflight coalescing.
func flightKey(key types.SnapshotKey) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d",
		key.OrganizationID, key.ScopeKind, key.EntityID, key.PeriodType,
		key.PeriodStart.Unix())
}

// SanitizeSnapshot coerces NaN values to zero and clamps every persisted
// rate field to +/-999.99 and every rating/score field to +/-9.99. This is a
// hard contract with the storage schema's fixed-precision columns and runs
// before every write.
func SanitizeSnapshot(snap *types.MetricsSnapshot) {
	snap.AvgGoalProgress = round2(sanitize(snap.AvgGoalProgress, RateBound))
	snap.GoalCompletionRate = round2(sanitize(snap.GoalCompletionRate, RateBound))
	snap.WorkloadHours = round2(sanitize(snap.WorkloadHours, RateBound))
	snap.WellbeingScore = round2(sanitize(snap.WellbeingScore, RateBound))

	snap.AvgReviewRating = round2(sanitize(snap.AvgReviewRating, ScoreBound))
	snap.AvgSentiment = round2(sanitize(snap.AvgSentiment, ScoreBound))
	snap.AvgProductivity = round2(sanitize(snap.AvgProductivity, ScoreBound))
	snap.AvgQuality = round2(sanitize(snap.AvgQuality, ScoreBound))
	snap.AvgCollaboration = round2(sanitize(snap.AvgCollaboration, ScoreBound))
	snap.AvgPerformanceScore = round2(sanitize(snap.AvgPerformanceScore, ScoreBound))
}

// --- Sub-aggregations ---
//
// Each sub-aggregation is a pure function over its fetched record set so the
// classification rules are testable without a database.

type goalMetrics struct {
	total, completed, inProgress, notStarted int
	onTrack, atRisk, overdue                 int
	avgProgress, completionRate              float64
}

// atRiskProgressThreshold marks incomplete goals below this progress as at
// risk when they are not yet overdue.
const atRiskProgressThreshold = 50

// aggregateGoals derives all goal counts and rates from the included set.
// Draft goals are excluded entirely. Completed/in-progress/not-started is a
// status partition; health classification marks completed goals on track
// first, then overdue (past due as of period end, incomplete), then at risk
// (progress below 50), else on track.
func aggregateGoals(goals []types.Goal, periodEnd time.Time) goalMetrics {
	var m goalMetrics
	var progressSum float64

	for _, goal := range goals {
		if goal.Status == types.GoalDraft {
			continue
		}
		m.total++
		progressSum += goal.Progress

		switch goal.Status {
		case types.GoalCompleted:
			m.completed++
		case types.GoalInProgress:
			m.inProgress++
		case types.GoalNotStarted:
			m.notStarted++
		}

		switch {
		case goal.Status == types.GoalCompleted:
			m.onTrack++
		case goal.DueDate != nil && goal.DueDate.Before(periodEnd):
			m.overdue++
		case goal.Progress < atRiskProgressThreshold:
			m.atRisk++
		default:
			m.onTrack++
		}
	}

	m.avgProgress = round2(safeDiv(progressSum, float64(m.total)))
	m.completionRate = round2(safeDiv(float64(m.completed), float64(m.total)) * 100)
	return m
}

type reviewMetrics struct {
	total, completed, pending int
	avgRating                 float64
}

// aggregateReviews counts completed and pending reviews and averages ratings
// over reviews that carry one.
func aggregateReviews(reviews []types.Review) reviewMetrics {
	var m reviewMetrics
	var ratingSum float64
	var rated int

	for _, r := range reviews {
		m.total++
		if r.Status == types.ReviewCompleted {
			m.completed++
		} else {
			m.pending++
		}
		if r.Rating != nil {
			ratingSum += *r.Rating
			rated++
		}
	}

	m.avgRating = round2(safeDiv(ratingSum, float64(rated)))
	return m
}

type feedbackMetrics struct {
	total, positive, constructive int
	avgSentiment                  float64
}

// aggregateFeedback counts feedback by type and averages sentiment over
// scored items.
func aggregateFeedback(items []types.FeedbackItem) feedbackMetrics {
	var m feedbackMetrics
	var sentimentSum float64
	var scored int

	for _, f := range items {
		m.total++
		switch f.Type {
		case types.FeedbackPositive:
			m.positive++
		case types.FeedbackConstructive:
			m.constructive++
		}
		if f.SentimentScore != nil {
			sentimentSum += *f.SentimentScore
			scored++
		}
	}

	m.avgSentiment = round2(safeDiv(sentimentSum, float64(scored)))
	return m
}

type performanceMetrics struct {
	avgProductivity, avgQuality, avgCollaboration, avgScore float64
	workloadHours, wellbeing                                float64
}

// aggregatePerformance averages the score fields, derives workload hours from
// total active minutes per record, and uses the engagement average as the
// wellbeing proxy.
func aggregatePerformance(records []types.PerformanceRecord) performanceMetrics {
	var m performanceMetrics
	if len(records) == 0 {
		return m
	}

	var productivity, quality, collaboration, score, engagement float64
	var activeMinutes int
	for _, r := range records {
		productivity += r.Productivity
		quality += r.Quality
		collaboration += r.Collaboration
		score += r.PerformanceScore
		engagement += r.EngagementScore
		activeMinutes += r.ActiveTimeMinutes
	}

	n := float64(len(records))
	m.avgProductivity = round2(productivity / n)
	m.avgQuality = round2(quality / n)
	m.avgCollaboration = round2(collaboration / n)
	m.avgScore = round2(score / n)
	m.workloadHours = round2(float64(activeMinutes) / n / 60)
	m.wellbeing = round2(engagement / n)
	return m
}

type activityMetrics struct {
	total, distinctActors int
}

// aggregateActivity counts events and distinct actors.
func aggregateActivity(events []types.ActivityEvent) activityMetrics {
	var m activityMetrics
	actors := make(map[string]struct{}, len(events))
	for _, e := range events {
		m.total++
		actors[e.ActorID] = struct{}{}
	}
	m.distinctActors = len(actors)
	return m
}
