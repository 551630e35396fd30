// Package main is the entrypoint for the report worker Lambda function.
//
// The worker consumes ReportJobMessages from the report jobs SQS queue and
// runs report generation for each. Lambda SQS integration uses partial batch
// responses: messages that fail generation are returned in
// batchItemFailures so SQS retries only those.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"perfpulse/internal/analytics"
	"perfpulse/internal/cache"
	"perfpulse/internal/config"
	"perfpulse/internal/db"
	"perfpulse/internal/metrics"
	"perfpulse/internal/types"
)

// Handler holds the report worker dependencies.
type Handler struct {
	composer *analytics.Composer
	logger   *slog.Logger
}

// Handle processes one SQS event. Each record is one report generation job;
// failures are reported per-item so the rest of the batch is acknowledged.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process report job",
				"message_id", record.MessageId,
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var msg types.ReportJobMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal report job; dropping message",
			"message_id", record.MessageId,
			"error", err,
		)
		// Permanent parse failure; retrying cannot succeed.
		return nil
	}

	if msg.TraceID != "" {
		ctx = types.WithRequestID(ctx, msg.TraceID)
	}

	start := time.Now()
	doc, err := h.composer.Generate(ctx, analytics.GenerateRequest{
		OrganizationID: msg.OrganizationID,
		ReportType:     msg.ReportType,
		ScopeKind:      msg.ScopeKind,
		EntityID:       msg.EntityID,
		PeriodStart:    msg.PeriodStart,
	})
	if err != nil {
		return fmt.Errorf("generating %s report for org %s: %w", msg.ReportType, msg.OrganizationID, err)
	}

	h.logger.InfoContext(ctx, "report generated",
		"job_id", msg.JobID,
		"report_id", doc.ID,
		"report_type", string(msg.ReportType),
		"organization_id", msg.OrganizationID,
		"period_label", doc.PeriodLabel,
		"duration", time.Since(start),
	)
	return nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})).
		With("service", cfg.Service, "component", "report-worker")
	slog.SetDefault(logger)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	records := db.NewRecordRepository(pool)
	snapshots := db.NewSnapshotRepository(pool)
	reports := db.NewReportRepository(pool)
	memberships := db.NewMembershipRepository(pool)

	clock := types.RealClock{}
	snapshotCache := cache.NewSnapshotCache(clock)

	var telemetry *metrics.CloudWatchTelemetry
	if cfg.AWS.MetricsNamespace != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			logger.Warn("failed to load AWS configuration; telemetry disabled", "error", err)
		} else {
			cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
				if cfg.AWS.EndpointURL != "" {
					o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
				}
			})
			telemetry = metrics.NewCloudWatchTelemetry(cwClient, cfg.AWS.MetricsNamespace, logger)
		}
	}

	var computeTelemetry analytics.Telemetry
	var reportTelemetry analytics.ReportTelemetry
	if telemetry != nil {
		computeTelemetry = telemetry
		reportTelemetry = telemetry
	}

	scopes := analytics.NewScopeResolver(memberships)
	aggregator := analytics.NewAggregator(records, snapshots, snapshotCache, scopes, computeTelemetry, logger, clock)
	seriesBuilder := analytics.NewSeriesBuilder(aggregator, clock)
	composer := analytics.NewComposer(aggregator, seriesBuilder, analytics.NewTrendAnalyzer(), reports, reportTelemetry, logger, clock)

	handler := &Handler{composer: composer, logger: logger}

	logger.Info("report worker starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
	)
	lambda.Start(handler.Handle)
}
