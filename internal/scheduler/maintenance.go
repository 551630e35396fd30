package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SnapshotPruner deletes computed snapshots older than a cutoff. Implemented
// by db.SnapshotRepository.
type SnapshotPruner interface {
	DeleteComputedBefore(ctx context.Context, orgID string, cutoff time.Time) (int64, error)
}

// ReportPruner deletes report documents generated before a cutoff.
// Implemented by db.ReportRepository.
type ReportPruner interface {
	DeleteGeneratedBefore(ctx context.Context, orgID string, cutoff time.Time) (int64, error)
}

// CleanupService applies the retention policy to computed snapshots and
// persisted report documents. Cleanup runs platform-wide; the organization
// filter on the pruners exists for targeted manual runs.
type CleanupService struct {
	snapshots SnapshotPruner
	reports   ReportPruner
	logger    *slog.Logger
}

// NewCleanupService creates a CleanupService.
func NewCleanupService(snapshots SnapshotPruner, reports ReportPruner, logger *slog.Logger) *CleanupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupService{
		snapshots: snapshots,
		reports:   reports,
		logger:    logger,
	}
}

// PruneSnapshots deletes snapshots computed before now minus retention and
// returns the number of rows removed.
func (c *CleanupService) PruneSnapshots(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	cutoff := now.Add(-retention)

	deleted, err := c.snapshots.DeleteComputedBefore(ctx, "", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	c.logger.InfoContext(ctx, "snapshot retention cleanup complete",
		"cutoff", cutoff,
		"deleted", deleted,
	)
	return deleted, nil
}

// PruneReports deletes report documents generated before now minus retention
// and returns the number of rows removed.
func (c *CleanupService) PruneReports(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	cutoff := now.Add(-retention)

	deleted, err := c.reports.DeleteGeneratedBefore(ctx, "", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning reports before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	c.logger.InfoContext(ctx, "report retention cleanup complete",
		"cutoff", cutoff,
		"deleted", deleted,
	)
	return deleted, nil
}
