// Package scheduler implements the event-lifecycle trigger scheduler: the
// background service that advances each event's (category, sub_status) pair
// through its lifecycle at the wall-clock instants given by the event's
// timestamps, without any external caller polling it.
//
// One long-lived goroutine runs the control loop. It sleeps until the
// earliest pending trigger is due, applies that transition through the
// StatusApplier, computes the event's next transition, and re-sleeps. All
// other callers interact with it only through Rebuild, Stop, and Status; an
// insert that produces a sooner earliest trigger wakes the loop early so the
// wait is shortened rather than polled.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventline/internal/types"
)

// ErrAlreadyRunning is returned by Start when the scheduler is running or in
// the middle of starting.
var ErrAlreadyRunning = errors.New("scheduler: already running")

// Config holds the dependencies and tuning parameters for a Scheduler.
type Config struct {
	Source    EventSource
	Applier   StatusApplier
	Publisher TransitionPublisher // optional; nil disables publication
	Metrics   Metrics             // optional; nil disables telemetry
	Clock     Clock               // optional; defaults to the system clock
	Logger    *slog.Logger        // optional; defaults to slog.Default

	// ApplyTimeout bounds each StatusApplier call.
	ApplyTimeout time.Duration
	// RetryMinWait and RetryMaxWait bound the exponential backoff between
	// retries of a failed status application.
	RetryMinWait time.Duration
	RetryMaxWait time.Duration
	// StartupScanTimeout bounds the full event scan performed by Start.
	StartupScanTimeout time.Duration
}

// Scheduler owns the trigger queue and the control loop. Construct it once in
// the composition root; it is safe for concurrent use by any number of
// callers alongside the running loop.
type Scheduler struct {
	source    EventSource
	applier   StatusApplier
	publisher TransitionPublisher
	metrics   Metrics
	clock     Clock
	logger    *slog.Logger

	applyTimeout time.Duration
	retryMinWait time.Duration
	retryMaxWait time.Duration
	scanTimeout  time.Duration

	queue *TriggerQueue
	// wake is a capacity-1 signal channel. Anything that may have changed the
	// earliest pending trigger nudges it so the loop re-peeks.
	wake chan struct{}

	mu      sync.Mutex
	state   types.SchedulerState
	stopCh  chan struct{}
	doneCh  chan struct{}
	retries map[string]int
}

// New creates a Scheduler from the given configuration. Source and Applier
// are required.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("scheduler: Source must not be nil")
	}
	if cfg.Applier == nil {
		return nil, fmt.Errorf("scheduler: Applier must not be nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = NewRealClock()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	applyTimeout := cfg.ApplyTimeout
	if applyTimeout <= 0 {
		applyTimeout = 5 * time.Second
	}
	retryMin := cfg.RetryMinWait
	if retryMin <= 0 {
		retryMin = 500 * time.Millisecond
	}
	retryMax := cfg.RetryMaxWait
	if retryMax < retryMin {
		retryMax = 30 * time.Second
	}
	scanTimeout := cfg.StartupScanTimeout
	if scanTimeout <= 0 {
		scanTimeout = 30 * time.Second
	}

	return &Scheduler{
		source:       cfg.Source,
		applier:      cfg.Applier,
		publisher:    cfg.Publisher,
		metrics:      metrics,
		clock:        clock,
		logger:       logger,
		applyTimeout: applyTimeout,
		retryMinWait: retryMin,
		retryMaxWait: retryMax,
		scanTimeout:  scanTimeout,
		queue:        NewTriggerQueue(),
		wake:         make(chan struct{}, 1),
		state:        types.SchedulerStopped,
		retries:      make(map[string]int),
	}, nil
}

// Start performs a full rebuild from the event source and launches the
// control loop. Transitions already in the past are applied immediately, so
// the queue holds only future work once Start returns. Calling Start while
// the scheduler is running or starting returns ErrAlreadyRunning.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == types.SchedulerRunning || s.state == types.SchedulerStarting {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.state = types.SchedulerStarting
	s.mu.Unlock()

	scanCtx, cancel := context.WithTimeout(ctx, s.scanTimeout)
	defer cancel()

	events, err := s.source.ListEventsWithLifecycleFields(scanCtx)
	if err != nil {
		s.mu.Lock()
		s.state = types.SchedulerStopped
		s.mu.Unlock()
		return fmt.Errorf("scheduler: startup scan failed: %w", err)
	}

	for _, ev := range events {
		if ev == nil || ev.ID == "" {
			s.logger.Warn("skipping malformed event during startup rebuild")
			continue
		}
		s.rebuildOne(scanCtx, ev.ID, ev, true)
	}

	s.mu.Lock()
	s.state = types.SchedulerRunning
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	s.logger.Info("scheduler started",
		"events_scanned", len(events),
		"pending_triggers", s.queue.Len(),
	)

	go s.run(stopCh, doneCh)
	return nil
}

// Stop signals the loop to exit at its next suspension point and waits for
// it to terminate. A trigger being applied when Stop is called finishes
// before the loop exits. Stop is a no-op when the scheduler is not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != types.SchedulerRunning {
		s.mu.Unlock()
		return
	}
	s.state = types.SchedulerStopping
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	s.mu.Lock()
	s.state = types.SchedulerStopped
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// Status returns an observability snapshot without blocking the control loop.
func (s *Scheduler) Status() types.SchedulerStatus {
	s.mu.Lock()
	running := s.state == types.SchedulerRunning
	s.mu.Unlock()

	st := types.SchedulerStatus{
		Running:      running,
		PendingCount: s.queue.Len(),
	}
	if trg, ok := s.queue.PeekEarliest(); ok {
		at := trg.FireAt
		st.NextFireAt = &at
	}
	return st
}

// Rebuild recomputes and atomically replaces the event's pending trigger. It
// is called whenever an event's lifecycle timestamps are created, updated,
// or the event is deleted (ev == nil). While the scheduler is running,
// transitions already in the past are applied immediately; while stopped,
// only the queue is updated and the next Start re-derives everything.
//
// Safe to call from any number of goroutines, concurrently with the control
// loop's own processing of the same event: the queue's per-event entry is
// last-writer-wins.
func (s *Scheduler) Rebuild(ctx context.Context, eventID string, ev *types.Event) {
	if eventID == "" {
		s.logger.Warn("rebuild called with empty event id")
		return
	}

	if ev == nil {
		s.queue.Remove(eventID)
		s.clearRetries(eventID)
		s.signalWake()
		s.logger.Info("pending trigger cancelled", "event_id", eventID)
		return
	}

	s.clearRetries(eventID)
	s.rebuildOne(ctx, eventID, ev, s.isRunning())
	s.signalWake()
}

// rebuildOne computes the event's pending trigger relative to now and places
// it in the queue. When catchUp is set, due transitions are applied in causal
// order first; a failure during catch-up schedules a retry trigger for the
// failed transition instead of advancing past it.
func (s *Scheduler) rebuildOne(ctx context.Context, eventID string, ev *types.Event, catchUp bool) {
	now := s.clock.Now()
	due, future := splitAt(ev, now)

	if catchUp {
		for _, tr := range due {
			if err := s.applyTransition(ctx, eventID, tr); err != nil {
				if isEventGone(err) {
					s.dropTrigger(eventID, tr.SubStatus)
					return
				}
				s.logger.Error("catch-up transition failed, scheduling retry",
					"event_id", eventID,
					"sub_status", string(tr.SubStatus),
					"error", err,
				)
				retry := types.Trigger{
					EventID:   eventID,
					FireAt:    now.Add(s.backoff(eventID)),
					Category:  tr.Category,
					SubStatus: tr.SubStatus,
				}
				s.queue.Upsert(eventID, &retry)
				return
			}
			s.logger.Info("applied overdue transition",
				"event_id", eventID,
				"category", string(tr.Category),
				"sub_status", string(tr.SubStatus),
				"scheduled_at", tr.At.Format(time.RFC3339),
			)
		}
	}

	if len(future) == 0 {
		s.queue.Remove(eventID)
		return
	}

	next := future[0]
	s.queue.Upsert(eventID, &types.Trigger{
		EventID:   eventID,
		FireAt:    next.At,
		Category:  next.Category,
		SubStatus: next.SubStatus,
	})
}

// run is the control loop. It must never execute two iterations concurrently;
// it is only ever launched once per Start and exits when stopCh closes.
//
// The loop suspends in exactly two places: waiting for the queue to become
// non-empty, and waiting for the earliest trigger's fire_at (or an early
// wake). Everything else is bounded by ApplyTimeout.
func (s *Scheduler) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		trg, ok := s.queue.PeekEarliest()
		if !ok {
			select {
			case <-stopCh:
				return
			case <-s.wake:
				continue
			}
		}

		if delay := trg.FireAt.Sub(s.clock.Now()); delay > 0 {
			select {
			case <-stopCh:
				return
			case <-s.wake:
				// The wait target may have changed; re-peek.
				continue
			case <-s.clock.After(delay):
			}
		}

		select {
		case <-stopCh:
			return
		default:
		}

		s.fireDue()
	}
}

// fireDue pops the earliest trigger and applies it, unless a concurrent
// rebuild moved the earliest trigger into the future while we slept.
func (s *Scheduler) fireDue() {
	trg, ok := s.queue.PopEarliest()
	if !ok {
		return
	}
	if trg.FireAt.After(s.clock.Now()) {
		// Superseded while waiting; put it back and re-sleep.
		s.queue.RestoreIfAbsent(trg)
		return
	}

	ctx := context.Background()

	if err := s.applyTransition(ctx, trg.EventID, trg.Transition()); err != nil {
		if isEventGone(err) {
			// The event was deleted while the apply was in flight. The store
			// is the authority here; retrying a cancelled trigger would spin
			// against a row that no longer exists.
			s.dropTrigger(trg.EventID, trg.SubStatus)
			return
		}
		attempts := s.bumpRetries(trg.EventID)
		wait := s.backoffFor(attempts)
		s.logger.Error("status transition failed, retrying",
			"event_id", trg.EventID,
			"sub_status", string(trg.SubStatus),
			"attempt", attempts,
			"retry_in", wait.String(),
			"error", err,
		)
		retry := trg
		retry.FireAt = s.clock.Now().Add(wait)
		// A rebuild that raced the pop wins; only restore when nothing
		// fresher was installed.
		s.queue.RestoreIfAbsent(retry)
		s.signalWake()
		return
	}

	s.clearRetries(trg.EventID)
	s.logger.Info("status transition applied",
		"event_id", trg.EventID,
		"category", string(trg.Category),
		"sub_status", string(trg.SubStatus),
		"fire_at", trg.FireAt.Format(time.RFC3339),
	)

	s.scheduleNext(ctx, trg)
	s.metrics.RecordQueueDepth(ctx, s.queue.Len())
}

// scheduleNext re-fetches the event and enqueues its next transition. The
// fresh read means a timestamp edit or deletion that raced the firing is
// honored here rather than perpetuating a stale timeline.
func (s *Scheduler) scheduleNext(ctx context.Context, fired types.Trigger) {
	getCtx, cancel := context.WithTimeout(ctx, s.applyTimeout)
	defer cancel()

	ev, err := s.source.GetEvent(getCtx, fired.EventID)
	if err != nil {
		// The rest of the timeline must not be lost to a transient read
		// failure. Re-fire the applied trigger after a backoff: Apply is
		// idempotent, so the repeat is harmless and the successor lookup
		// runs again.
		attempts := s.bumpRetries(fired.EventID)
		wait := s.backoffFor(attempts)
		s.logger.Error("failed to reload event after transition, retrying",
			"event_id", fired.EventID,
			"attempt", attempts,
			"retry_in", wait.String(),
			"error", err,
		)
		retry := fired
		retry.FireAt = s.clock.Now().Add(wait)
		s.queue.RestoreIfAbsent(retry)
		s.signalWake()
		return
	}
	if ev == nil {
		s.queue.Remove(fired.EventID)
		return
	}

	next := nextAfter(ev, fired.Transition())
	if next == nil {
		s.queue.Remove(fired.EventID)
		return
	}
	s.queue.Upsert(fired.EventID, &types.Trigger{
		EventID:   fired.EventID,
		FireAt:    next.At,
		Category:  next.Category,
		SubStatus: next.SubStatus,
	})
	s.signalWake()
}

// applyTransition persists one transition with a bounded timeout, records
// telemetry, and publishes the applied transition downstream (best-effort).
func (s *Scheduler) applyTransition(ctx context.Context, eventID string, tr types.Transition) error {
	applyCtx, cancel := context.WithTimeout(ctx, s.applyTimeout)
	defer cancel()

	if err := s.applier.Apply(applyCtx, eventID, tr.Category, tr.SubStatus); err != nil {
		s.metrics.RecordTransition(ctx, tr.SubStatus, types.MetricResultFailure)
		return err
	}
	s.metrics.RecordTransition(ctx, tr.SubStatus, types.MetricResultSuccess)

	if s.publisher != nil {
		msg := types.TransitionMessage{
			MessageID: uuid.New().String(),
			EventID:   eventID,
			Category:  tr.Category,
			SubStatus: tr.SubStatus,
			FiredAt:   tr.At,
			AppliedAt: s.clock.Now(),
		}
		pubCtx, pubCancel := context.WithTimeout(ctx, s.applyTimeout)
		if err := s.publisher.Publish(pubCtx, msg); err != nil {
			s.logger.Warn("transition publication failed",
				"event_id", eventID,
				"sub_status", string(tr.SubStatus),
				"error", err,
			)
		}
		pubCancel()
	}
	return nil
}

// isEventGone reports whether an apply failure means the event row no longer
// exists, so its trigger must be dropped rather than retried.
func isEventGone(err error) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundEvent
}

// dropTrigger discards all pending work for a deleted event.
func (s *Scheduler) dropTrigger(eventID string, sub types.SubStatus) {
	s.clearRetries(eventID)
	s.queue.Remove(eventID)
	s.logger.Info("event no longer exists, dropping trigger",
		"event_id", eventID,
		"sub_status", string(sub),
	)
}

func (s *Scheduler) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == types.SchedulerRunning || s.state == types.SchedulerStarting
}

func (s *Scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) bumpRetries(eventID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries[eventID]++
	return s.retries[eventID]
}

func (s *Scheduler) clearRetries(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.retries, eventID)
}

// backoff bumps the event's retry counter and returns the corresponding wait.
func (s *Scheduler) backoff(eventID string) time.Duration {
	return s.backoffFor(s.bumpRetries(eventID))
}

// backoffFor computes the exponential backoff for the given attempt number:
// RetryMinWait doubling each attempt, capped at RetryMaxWait. Attempts are
// unbounded; a transition is never dropped.
func (s *Scheduler) backoffFor(attempt int) time.Duration {
	wait := s.retryMinWait
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= s.retryMaxWait {
			return s.retryMaxWait
		}
	}
	if wait > s.retryMaxWait {
		return s.retryMaxWait
	}
	return wait
}
