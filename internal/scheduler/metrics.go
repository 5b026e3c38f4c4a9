package scheduler

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"eventline/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchMetrics implements Metrics.
var _ Metrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics implements the Metrics interface by emitting scheduler
// telemetry to AWS CloudWatch.
//
// Metrics emitted:
//   - TransitionApply: Dims {SubStatus, Result} -- on every apply outcome
//   - TriggerQueueDepth: No dims -- queue depth after each loop iteration
//
// Emission failures are logged and dropped; metrics must never block or fail
// the control loop.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to the given
// namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordTransition emits a TransitionApply metric with SubStatus and Result
// dimensions.
func (m *CloudWatchMetrics) RecordTransition(ctx context.Context, subStatus types.SubStatus, result types.MetricResult) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricTransitionApply),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(types.DimSubStatus),
						Value: aws.String(string(subStatus)),
					},
					{
						Name:  aws.String(types.DimResult),
						Value: aws.String(string(result)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record transition metric",
			"error", err,
			"sub_status", string(subStatus),
			"result", string(result),
		)
	}
}

// RecordQueueDepth emits the current trigger queue depth.
func (m *CloudWatchMetrics) RecordQueueDepth(ctx context.Context, depth int) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricTriggerQueueDepth),
				Value:      aws.Float64(float64(depth)),
				Unit:       cwtypes.StandardUnitCount,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record queue depth metric",
			"error", err,
			"depth", depth,
		)
	}
}

// NoopMetrics is the default Metrics implementation; it records nothing.
type NoopMetrics struct{}

func (NoopMetrics) RecordTransition(context.Context, types.SubStatus, types.MetricResult) {}
func (NoopMetrics) RecordQueueDepth(context.Context, int)                                 {}
