// Package queue provides the SQS producer that dispatches report generation
// jobs to the report worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"perfpulse/internal/config"
	"perfpulse/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// ReportTrigger serializes ReportJobMessages and sends them to the report
// jobs queue. Used by the scheduler when a report schedule comes due and by
// any caller that wants asynchronous generation.
type ReportTrigger struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
	clock    types.Clock
}

// NewReportTrigger creates a ReportTrigger reading the queue URL from the
// AWS configuration.
func NewReportTrigger(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger, clock types.Clock) *ReportTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &ReportTrigger{
		client:   client,
		queueURL: awsCfg.ReportQueueURL,
		logger:   logger,
		clock:    clock,
	}
}

// TriggerReport enqueues a generation job for one report. Missing JobID and
// TriggeredAt fields are filled in; the reason travels as a message attribute
// for consumer-side diagnostics.
func (t *ReportTrigger) TriggerReport(ctx context.Context, msg types.ReportJobMessage, reason string) error {
	if msg.JobID == "" {
		msg.JobID = fmt.Sprintf("job_%s", uuid.NewString())
	}
	if msg.TraceID == "" {
		msg.TraceID = uuid.NewString()
	}
	if msg.TriggeredAt.IsZero() {
		msg.TriggeredAt = t.clock.Now()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal ReportJobMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(reason),
			},
		},
	}

	if _, err := t.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to enqueue report job %s", msg.JobID),
			err,
		)
	}

	t.logger.InfoContext(ctx, "report job enqueued",
		"queue_url", t.queueURL,
		"job_id", msg.JobID,
		"trace_id", msg.TraceID,
		"organization_id", msg.OrganizationID,
		"report_type", string(msg.ReportType),
		"reason", reason,
	)

	return nil
}
