package scheduler

import (
	"context"
	"time"

	"eventline/internal/types"
)

// EventSource abstracts the event store read path the scheduler needs.
// Using an interface allows clean testing without database dependencies.
type EventSource interface {
	// ListEventsWithLifecycleFields returns every event with its lifecycle
	// timestamps and current status. Used by the full rebuild on Start.
	ListEventsWithLifecycleFields(ctx context.Context) ([]*types.Event, error)
	// GetEvent returns one event, or (nil, nil) when it does not exist.
	GetEvent(ctx context.Context, id string) (*types.Event, error)
}

// StatusApplier persists a computed status transition. Apply must be
// idempotent: re-applying the same (category, sub_status) pair is harmless.
// This is the scheduler's sole write path into the event store.
type StatusApplier interface {
	Apply(ctx context.Context, eventID string, category types.StatusCategory, subStatus types.SubStatus) error
}

// TransitionPublisher announces an applied transition to downstream workers.
// Publication is best-effort: a failure is logged by the caller, never
// propagated into the control loop.
type TransitionPublisher interface {
	Publish(ctx context.Context, msg types.TransitionMessage) error
}

// Metrics records scheduler telemetry. Implementations must not block the
// control loop; the CloudWatch implementation logs and drops on failure.
type Metrics interface {
	RecordTransition(ctx context.Context, subStatus types.SubStatus, result types.MetricResult)
	RecordQueueDepth(ctx context.Context, depth int)
}

// Clock abstracts wall-clock access so tests can drive the control loop with
// simulated time.
type Clock interface {
	Now() time.Time
	// After behaves like time.After. A non-positive duration must yield a
	// channel that is immediately ready.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func (realClock) After(d time.Duration) <-chan time.Time {
	if d <= 0 {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	return time.After(d)
}

// NewRealClock returns a Clock backed by the system clock in UTC.
func NewRealClock() Clock { return realClock{} }
