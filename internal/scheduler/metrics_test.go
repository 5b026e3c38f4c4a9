package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventline/internal/types"
)

type mockCloudWatchClient struct {
	mu     sync.Mutex
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = append(m.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestCloudWatchMetrics_RecordTransition(t *testing.T) {
	client := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(client, "", slog.New(slog.DiscardHandler))

	m.RecordTransition(context.Background(), types.SubStatusEventStarted, types.MetricResultSuccess)

	require.Len(t, client.inputs, 1)
	input := client.inputs[0]
	assert.Equal(t, types.MetricNamespace, *input.Namespace)

	require.Len(t, input.MetricData, 1)
	datum := input.MetricData[0]
	assert.Equal(t, types.MetricTransitionApply, *datum.MetricName)
	assert.Equal(t, float64(1), *datum.Value)

	dims := make(map[string]string, len(datum.Dimensions))
	for _, d := range datum.Dimensions {
		dims[*d.Name] = *d.Value
	}
	assert.Equal(t, string(types.SubStatusEventStarted), dims[types.DimSubStatus])
	assert.Equal(t, string(types.MetricResultSuccess), dims[types.DimResult])
}

func TestCloudWatchMetrics_RecordQueueDepth(t *testing.T) {
	client := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(client, "CustomNamespace", slog.New(slog.DiscardHandler))

	m.RecordQueueDepth(context.Background(), 7)

	require.Len(t, client.inputs, 1)
	input := client.inputs[0]
	assert.Equal(t, "CustomNamespace", *input.Namespace)

	require.Len(t, input.MetricData, 1)
	datum := input.MetricData[0]
	assert.Equal(t, types.MetricTriggerQueueDepth, *datum.MetricName)
	assert.Equal(t, float64(7), *datum.Value)
	assert.Empty(t, datum.Dimensions)
}

func TestCloudWatchMetrics_EmissionFailureIsSwallowed(t *testing.T) {
	client := &mockCloudWatchClient{err: errors.New("throttled")}
	m := NewCloudWatchMetrics(client, "", slog.New(slog.DiscardHandler))

	assert.NotPanics(t, func() {
		m.RecordTransition(context.Background(), types.SubStatusCompleted, types.MetricResultFailure)
		m.RecordQueueDepth(context.Background(), 3)
	})
	assert.Empty(t, client.inputs)
}
