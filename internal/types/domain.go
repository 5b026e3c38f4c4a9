package types

import (
	"time"
)

// Event is the lifecycle view of an event record. The scheduler treats every
// field except (Category, SubStatus) as read-only; those two are written only
// through the StatusApplier path.
//
// The five instants are optional. When all are present they are expected to be
// non-decreasing in declaration order; enforcing that belongs to the events
// API validation layer, not the scheduler.
type Event struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description,omitempty" db:"description"`

	// Lifecycle timestamps, in causal order.
	RegistrationStart   *time.Time `json:"registration_start,omitempty" db:"registration_start"`
	RegistrationEnd     *time.Time `json:"registration_end,omitempty" db:"registration_end"`
	StartTime           *time.Time `json:"start_time,omitempty" db:"start_time"`
	EndTime             *time.Time `json:"end_time,omitempty" db:"end_time"`
	CertificateDeadline *time.Time `json:"certificate_deadline,omitempty" db:"certificate_deadline"`

	// Currently applied lifecycle state.
	Category  StatusCategory `json:"category" db:"category"`
	SubStatus SubStatus      `json:"sub_status" db:"sub_status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Transition is one computed step of an event's timeline: at instant At the
// event's state becomes (Category, SubStatus). Transitions are values derived
// from an Event's timestamps; they are never edited in place.
type Transition struct {
	At        time.Time      `json:"at"`
	Category  StatusCategory `json:"category"`
	SubStatus SubStatus      `json:"sub_status"`
}

// Trigger is a scheduled unit of future work: apply the embedded transition to
// the identified event when FireAt is reached. An event has at most one
// pending trigger at a time.
type Trigger struct {
	EventID   string         `json:"event_id"`
	FireAt    time.Time      `json:"fire_at"`
	Category  StatusCategory `json:"category"`
	SubStatus SubStatus      `json:"sub_status"`
}

// Transition returns the trigger's transition value.
func (t Trigger) Transition() Transition {
	return Transition{At: t.FireAt, Category: t.Category, SubStatus: t.SubStatus}
}

// SchedulerStatus is the observability snapshot returned by Scheduler.Status()
// and exposed verbatim on the health endpoint.
type SchedulerStatus struct {
	Running      bool       `json:"running"`
	PendingCount int        `json:"pending_count"`
	NextFireAt   *time.Time `json:"next_fire_at,omitempty"`
}

// TransitionMessage is the payload published to the transition stream after a
// status change has been persisted. Downstream workers (certificate
// generation, mail delivery) consume these; this service never does.
type TransitionMessage struct {
	MessageID string         `json:"message_id"`
	EventID   string         `json:"event_id"`
	Category  StatusCategory `json:"category"`
	SubStatus SubStatus      `json:"sub_status"`
	FiredAt   time.Time      `json:"fired_at"`
	AppliedAt time.Time      `json:"applied_at"`
}
