package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventline/internal/types"
)

func newResilientUnderTest(inner StatusApplier) *ResilientApplier {
	return NewResilientApplier(inner, "status-store-test", slog.New(slog.DiscardHandler))
}

func TestResilientApplier_PassesThroughSuccess(t *testing.T) {
	inner := &fakeApplier{}
	ra := newResilientUnderTest(inner)

	err := ra.Apply(context.Background(), "evt-1", types.CategoryOngoing, types.SubStatusEventStarted)
	require.NoError(t, err)

	calls := inner.appliedCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "evt-1", calls[0].eventID)
	assert.Equal(t, types.SubStatusEventStarted, calls[0].subStatus)
}

func TestResilientApplier_PassesThroughFailure(t *testing.T) {
	inner := &fakeApplier{failFirst: 1}
	ra := newResilientUnderTest(inner)

	err := ra.Apply(context.Background(), "evt-1", types.CategoryOngoing, types.SubStatusEventStarted)
	require.Error(t, err)
	assert.Equal(t, "status store unavailable", err.Error())

	var appErr *types.AppError
	assert.False(t, errors.As(err, &appErr), "store errors below the trip threshold pass through unchanged")
}

func TestResilientApplier_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeApplier{failFirst: 100}
	ra := newResilientUnderTest(inner)

	for i := 0; i < 6; i++ {
		err := ra.Apply(context.Background(), "evt-1", types.CategoryOngoing, types.SubStatusEventStarted)
		require.Error(t, err, "failure %d", i+1)
	}
	assert.Equal(t, 6, inner.attemptCount())

	// The breaker is now open; calls are rejected without reaching the store.
	err := ra.Apply(context.Background(), "evt-1", types.CategoryOngoing, types.SubStatusEventStarted)
	require.Error(t, err)
	assert.Equal(t, 6, inner.attemptCount(), "open breaker must not call the inner applier")

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, appErr.Code)
}

func TestResilientApplier_NotFoundDoesNotTripBreaker(t *testing.T) {
	inner := &goneApplier{}
	ra := newResilientUnderTest(inner)

	// Far more misses than the trip threshold. Each one must still reach the
	// store and come back as not_found, never as a rejected open-breaker call.
	for i := 0; i < 10; i++ {
		err := ra.Apply(context.Background(), "evt-1", types.CategoryOngoing, types.SubStatusEventStarted)
		require.Error(t, err)
		var appErr *types.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, types.ErrCodeNotFoundEvent, appErr.Code, "call %d", i+1)
	}
	assert.Equal(t, 10, inner.attemptCount())
}

func TestResilientApplier_SuccessResetsFailureCount(t *testing.T) {
	inner := &fakeApplier{failFirst: 3}
	ra := newResilientUnderTest(inner)

	for i := 0; i < 3; i++ {
		require.Error(t, ra.Apply(context.Background(), "evt-1", types.CategoryOngoing, types.SubStatusEventStarted))
	}
	require.NoError(t, ra.Apply(context.Background(), "evt-1", types.CategoryOngoing, types.SubStatusEventStarted))

	// Three more failures would have tripped a breaker that never reset.
	inner.mu.Lock()
	inner.failFirst = 3
	inner.mu.Unlock()
	for i := 0; i < 3; i++ {
		err := ra.Apply(context.Background(), "evt-1", types.CategoryOngoing, types.SubStatusEventStarted)
		require.Error(t, err)
		var appErr *types.AppError
		assert.False(t, errors.As(err, &appErr))
	}
	require.NoError(t, ra.Apply(context.Background(), "evt-1", types.CategoryOngoing, types.SubStatusEventStarted))
}
