// Package main is the entrypoint for the scheduler Lambda function, the
// maintenance multiplexer invoked by EventBridge rules. The payload's task
// field selects the service: walking due report schedules into queued jobs,
// or retention cleanup of snapshots and report documents.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"perfpulse/internal/config"
	"perfpulse/internal/db"
	"perfpulse/internal/queue"
	"perfpulse/internal/scheduler"
	"perfpulse/internal/types"
)

// Handler multiplexes EventBridge maintenance payloads onto the scheduler
// services.
type Handler struct {
	reports *scheduler.ReportScheduler
	cleanup *scheduler.CleanupService
	cfg     *config.Config
	logger  *slog.Logger
	clock   types.Clock
}

// Handle dispatches one maintenance payload. ReferenceTime pins "now" for
// manual invocations; scheduled invocations leave it unset.
func (h *Handler) Handle(ctx context.Context, payload scheduler.MaintenancePayload) error {
	now := h.clock.Now()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	h.logger.InfoContext(ctx, "maintenance task starting",
		"task", string(payload.Task),
		"reference_time", now,
	)

	switch payload.Task {
	case scheduler.TaskGenerateScheduledReports:
		triggered, err := h.reports.TriggerDueReports(ctx, now)
		if err != nil {
			return fmt.Errorf("task %s: %w", payload.Task, err)
		}
		h.logger.InfoContext(ctx, "scheduled reports triggered", "count", triggered)
		return nil

	case scheduler.TaskCleanupSnapshots:
		deleted, err := h.cleanup.PruneSnapshots(ctx, now, h.cfg.Analytics.SnapshotRetention)
		if err != nil {
			return fmt.Errorf("task %s: %w", payload.Task, err)
		}
		h.logger.InfoContext(ctx, "snapshots pruned", "deleted", deleted)
		return nil

	case scheduler.TaskCleanupReports:
		deleted, err := h.cleanup.PruneReports(ctx, now, h.cfg.Analytics.ReportRetention)
		if err != nil {
			return fmt.Errorf("task %s: %w", payload.Task, err)
		}
		h.logger.InfoContext(ctx, "reports pruned", "deleted", deleted)
		return nil

	default:
		return fmt.Errorf("unknown maintenance task: %q", payload.Task)
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})).
		With("service", cfg.Service, "component", "scheduler")
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS configuration", "error", err)
		os.Exit(1)
	}
	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	clock := types.RealClock{}
	trigger := queue.NewReportTrigger(sqsClient, cfg.AWS, logger, clock)
	schedules := db.NewScheduleRepository(pool)
	snapshots := db.NewSnapshotRepository(pool)
	reports := db.NewReportRepository(pool)

	handler := &Handler{
		reports: scheduler.NewReportScheduler(schedules, trigger, cfg.Analytics.ScheduleBatchSize, logger),
		cleanup: scheduler.NewCleanupService(snapshots, reports, logger),
		cfg:     cfg,
		logger:  logger,
		clock:   clock,
	}

	logger.Info("scheduler starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
	)
	lambda.Start(handler.Handle)
}
