package types

// StatusCategory is the coarse lifecycle state of an event.
type StatusCategory string

const (
	CategoryUpcoming  StatusCategory = "upcoming"
	CategoryOngoing   StatusCategory = "ongoing"
	CategoryCompleted StatusCategory = "completed"
)

// SubStatus is the fine-grained lifecycle phase within a category.
type SubStatus string

const (
	// SubStatusNotYetOpen is the implicit state before the first transition.
	// It is never scheduled as a trigger.
	SubStatusNotYetOpen SubStatus = "not_yet_open"

	SubStatusRegistrationOpen      SubStatus = "registration_open"
	SubStatusRegistrationClosed    SubStatus = "registration_closed"
	SubStatusEventStarted          SubStatus = "event_started"
	SubStatusEventEnded            SubStatus = "event_ended"
	SubStatusCertificatesAvailable SubStatus = "certificates_available"
	SubStatusCompleted             SubStatus = "completed"
)

// SchedulerState represents the lifecycle of the scheduler itself.
type SchedulerState string

const (
	SchedulerStopped  SchedulerState = "stopped"
	SchedulerStarting SchedulerState = "starting"
	SchedulerRunning  SchedulerState = "running"
	SchedulerStopping SchedulerState = "stopping"
)

// MetricResult classifies the outcome of a status application attempt.
type MetricResult string

const (
	MetricResultSuccess MetricResult = "success"
	MetricResultFailure MetricResult = "failure"
)

// Metric and dimension names emitted to CloudWatch.
const (
	MetricNamespace         = "Eventline"
	MetricTransitionApply   = "TransitionApply"
	MetricTriggerQueueDepth = "TriggerQueueDepth"

	DimSubStatus = "SubStatus"
	DimResult    = "Result"
)
