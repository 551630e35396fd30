// Package metrics emits platform telemetry to AWS CloudWatch: snapshot
// compute latency and source mix, report generation latency and outcome, and
// API request metrics.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"perfpulse/internal/analytics"
	"perfpulse/internal/types"
)

// Metric and dimension names.
const (
	metricSnapshotCompute = "SnapshotComputeLatency"
	metricReportLatency   = "ReportGenerationLatency"
	metricReportOutcome   = "ReportGeneration"
	metricAPILatency      = "APIRequestLatency"
	metricAPICount        = "APIRequestCount"

	dimSource     = "Source"
	dimReportType = "ReportType"
	dimResult     = "Result"
	dimMethod     = "Method"
	dimEndpoint   = "Endpoint"
	dimStatus     = "Status"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertions for the telemetry contracts.
var (
	_ analytics.Telemetry       = (*CloudWatchTelemetry)(nil)
	_ analytics.ReportTelemetry = (*CloudWatchTelemetry)(nil)
)

// CloudWatchTelemetry publishes analytics telemetry to one CloudWatch
// namespace. Emission failures are logged and swallowed; telemetry never
// fails the operation being observed.
type CloudWatchTelemetry struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchTelemetry creates a CloudWatchTelemetry publishing to the
// given namespace.
func NewCloudWatchTelemetry(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchTelemetry {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchTelemetry{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordSnapshotCompute emits the snapshot retrieval latency with the source
// (cache, store, computed) as a dimension.
func (m *CloudWatchTelemetry) RecordSnapshotCompute(ctx context.Context, source analytics.ComputeSource, duration time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(metricSnapshotCompute),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(dimSource), Value: aws.String(string(source))},
		},
	})
}

// RecordReportGeneration emits generation latency and a success/failure
// count, both dimensioned by report type.
func (m *CloudWatchTelemetry) RecordReportGeneration(ctx context.Context, reportType types.ReportType, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}

	m.put(ctx,
		cwtypes.MetricDatum{
			MetricName: aws.String(metricReportLatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String(dimReportType), Value: aws.String(string(reportType))},
			},
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(metricReportOutcome),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String(dimReportType), Value: aws.String(string(reportType))},
				{Name: aws.String(dimResult), Value: aws.String(result)},
			},
		},
	)
}

// RecordRequest emits API request latency and count dimensioned by method,
// endpoint, and status. Satisfies core.MetricsCollector.
func (m *CloudWatchTelemetry) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(dimMethod), Value: aws.String(method)},
		{Name: aws.String(dimEndpoint), Value: aws.String(endpoint)},
		{Name: aws.String(dimStatus), Value: aws.String(status)},
	}

	m.put(context.Background(),
		cwtypes.MetricDatum{
			MetricName: aws.String(metricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(metricAPICount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
	)
}

func (m *CloudWatchTelemetry) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to publish metrics",
			"namespace", m.namespace,
			"datum_count", len(data),
			"error", err,
		)
	}
}
