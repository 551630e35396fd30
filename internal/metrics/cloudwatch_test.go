package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfpulse/internal/analytics"
	"perfpulse/internal/types"
)

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func newTestTelemetry(mock *mockCloudWatch) *CloudWatchTelemetry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCloudWatchTelemetry(mock, "PerfPulse", logger)
}

func dimensionValue(datum cwtypes.MetricDatum, name string) string {
	for _, d := range datum.Dimensions {
		if *d.Name == name {
			return *d.Value
		}
	}
	return ""
}

func TestRecordSnapshotCompute(t *testing.T) {
	mock := &mockCloudWatch{}
	telemetry := newTestTelemetry(mock)

	telemetry.RecordSnapshotCompute(context.Background(), analytics.SourceComputed, 250*time.Millisecond)

	require.Len(t, mock.inputs, 1)
	input := mock.inputs[0]
	assert.Equal(t, "PerfPulse", *input.Namespace)

	require.Len(t, input.MetricData, 1)
	datum := input.MetricData[0]
	assert.Equal(t, "SnapshotComputeLatency", *datum.MetricName)
	assert.Equal(t, float64(250), *datum.Value)
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, datum.Unit)
	assert.Equal(t, "computed", dimensionValue(datum, "Source"))
}

func TestRecordReportGeneration(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mock := &mockCloudWatch{}
		telemetry := newTestTelemetry(mock)

		telemetry.RecordReportGeneration(context.Background(), types.ReportWeeklySummary, 1200*time.Millisecond, nil)

		require.Len(t, mock.inputs, 1)
		data := mock.inputs[0].MetricData
		require.Len(t, data, 2)

		assert.Equal(t, "ReportGenerationLatency", *data[0].MetricName)
		assert.Equal(t, float64(1200), *data[0].Value)
		assert.Equal(t, "weekly_summary", dimensionValue(data[0], "ReportType"))

		assert.Equal(t, "ReportGeneration", *data[1].MetricName)
		assert.Equal(t, "success", dimensionValue(data[1], "Result"))
	})

	t.Run("failure", func(t *testing.T) {
		mock := &mockCloudWatch{}
		telemetry := newTestTelemetry(mock)

		telemetry.RecordReportGeneration(context.Background(), types.ReportMonthlyCard, time.Second, errors.New("db down"))

		require.Len(t, mock.inputs, 1)
		data := mock.inputs[0].MetricData
		require.Len(t, data, 2)
		assert.Equal(t, "failure", dimensionValue(data[1], "Result"))
	})
}

func TestRecordRequest(t *testing.T) {
	mock := &mockCloudWatch{}
	telemetry := newTestTelemetry(mock)

	telemetry.RecordRequest("GET", "/v1/snapshots", "200", 35*time.Millisecond)

	require.Len(t, mock.inputs, 1)
	data := mock.inputs[0].MetricData
	require.Len(t, data, 2)

	assert.Equal(t, "APIRequestLatency", *data[0].MetricName)
	assert.Equal(t, "GET", dimensionValue(data[0], "Method"))
	assert.Equal(t, "/v1/snapshots", dimensionValue(data[0], "Endpoint"))
	assert.Equal(t, "200", dimensionValue(data[0], "Status"))

	assert.Equal(t, "APIRequestCount", *data[1].MetricName)
	assert.Equal(t, float64(1), *data[1].Value)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	mock := &mockCloudWatch{err: errors.New("throttled")}
	telemetry := newTestTelemetry(mock)

	// Must not panic or surface the error.
	telemetry.RecordSnapshotCompute(context.Background(), analytics.SourceCache, time.Millisecond)
	assert.Len(t, mock.inputs, 1)
}
