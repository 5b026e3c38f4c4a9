package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"eventline/internal/types"
)

// Compile-time assertion that ResilientApplier implements StatusApplier.
var _ StatusApplier = (*ResilientApplier)(nil)

// ResilientApplier decorates a StatusApplier with a circuit breaker so a
// persistently failing store sheds load instead of being hammered on every
// retry tick. Breaker-open is reported as a regular apply failure; the
// control loop's bounded backoff handles the rest, so no transition is ever
// dropped.
type ResilientApplier struct {
	inner   StatusApplier
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
}

// NewResilientApplier wraps inner with a named circuit breaker. The breaker
// trips after five consecutive failures and probes again after 30 seconds.
func NewResilientApplier(inner StatusApplier, name string, logger *slog.Logger) *ResilientApplier {
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// A missing row means the event was deleted, not that the store
			// is unhealthy; it must not push the breaker toward open.
			var appErr *types.AppError
			return errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundEvent
		},
	})
	return &ResilientApplier{
		inner:   inner,
		breaker: cb,
		logger:  logger,
	}
}

// Apply persists the transition through the breaker.
func (a *ResilientApplier) Apply(ctx context.Context, eventID string, category types.StatusCategory, subStatus types.SubStatus) error {
	_, err := a.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, a.inner.Apply(ctx, eventID, category, subStatus)
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		a.logger.Warn("status store circuit breaker open",
			"event_id", eventID,
			"sub_status", string(subStatus),
		)
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"status store circuit breaker is open",
			err,
		)
	}
	return err
}
