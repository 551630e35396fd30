package analytics

import (
	"context"
	"fmt"
	"time"

	"perfpulse/internal/types"
)

// MaxSeriesLength bounds how far back a single series request may walk.
const MaxSeriesLength = 120

// SeriesBuilder produces ordered snapshot series by walking backward through
// periods and invoking the aggregation engine's cache-or-compute path for
// each step. Each period is an independent unit of work; no cross-period
// transactional guarantee is provided.
type SeriesBuilder struct {
	aggregator *Aggregator
	clock      types.Clock
}

// NewSeriesBuilder creates a SeriesBuilder over the given aggregator.
func NewSeriesBuilder(aggregator *Aggregator, clock types.Clock) *SeriesBuilder {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &SeriesBuilder{aggregator: aggregator, clock: clock}
}

// BuildSnapshots returns count snapshots ending with the period containing
// the reference date, in chronological order, oldest first. The walk is
// sequential: each step needs only the previous period's boundary, not its
// result.
func (b *SeriesBuilder) BuildSnapshots(ctx context.Context, orgID string, kind types.ScopeKind, entityID string, periodType types.PeriodType, count int) ([]*types.MetricsSnapshot, error) {
	return b.BuildSnapshotsFrom(ctx, orgID, kind, entityID, periodType, count, b.clock.Now())
}

// BuildSnapshotsFrom is BuildSnapshots anchored at an explicit reference date.
func (b *SeriesBuilder) BuildSnapshotsFrom(ctx context.Context, orgID string, kind types.ScopeKind, entityID string, periodType types.PeriodType, count int, ref time.Time) ([]*types.MetricsSnapshot, error) {
	if count < 1 || count > MaxSeriesLength {
		return nil, types.NewAppError(
			types.ErrCodeValidationSeriesLength,
			fmt.Sprintf("series length %d out of range [1, %d]", count, MaxSeriesLength),
			nil,
		)
	}

	period, err := Boundaries(periodType, ref)
	if err != nil {
		return nil, err
	}

	snapshots := make([]*types.MetricsSnapshot, 0, count)
	for i := 0; i < count; i++ {
		snap, err := b.aggregator.GetOrComputePeriod(ctx, orgID, kind, entityID, period)
		if err != nil {
			return nil, fmt.Errorf("building series at %s: %w", period.Label, err)
		}
		snapshots = append(snapshots, snap)

		if i < count-1 {
			period, err = Previous(periodType, period.Start)
			if err != nil {
				return nil, err
			}
		}
	}

	// The walk accumulated newest first; reverse into chronological order.
	for i, j := 0, len(snapshots)-1; i < j; i, j = i+1, j-1 {
		snapshots[i], snapshots[j] = snapshots[j], snapshots[i]
	}
	return snapshots, nil
}

// BuildMetricSeries builds the snapshot series and extracts one named metric
// from it.
func (b *SeriesBuilder) BuildMetricSeries(ctx context.Context, orgID string, kind types.ScopeKind, entityID string, periodType types.PeriodType, count int, metricName string) (types.Series, error) {
	snapshots, err := b.BuildSnapshots(ctx, orgID, kind, entityID, periodType, count)
	if err != nil {
		return types.Series{}, err
	}
	return ExtractSeries(snapshots, periodType, metricName)
}

// ExtractSeries pulls one named metric out of a chronological snapshot slice.
// An unknown metric name is a caller error.
func ExtractSeries(snapshots []*types.MetricsSnapshot, periodType types.PeriodType, metricName string) (types.Series, error) {
	points := make([]types.SeriesPoint, 0, len(snapshots))
	for _, snap := range snapshots {
		value, ok := snap.Metric(metricName)
		if !ok {
			return types.Series{}, types.NewAppError(
				types.ErrCodeValidationMetricName,
				fmt.Sprintf("unknown metric name: %q", metricName),
				nil,
			)
		}
		points = append(points, types.SeriesPoint{
			PeriodLabel: snap.PeriodLabel,
			PeriodStart: snap.PeriodStart,
			Value:       value,
		})
	}
	return types.Series{
		MetricName: metricName,
		PeriodType: periodType,
		Points:     points,
	}, nil
}
