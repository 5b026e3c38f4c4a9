// timeline.go computes the deterministic transition sequence implied by an
// event's lifecycle timestamps. All functions here are pure: no side effects,
// safe for concurrent and repeated calls.
package scheduler

import (
	"time"

	"eventline/internal/types"
)

// subStatusRank fixes the causal order of transitions. When two instants are
// numerically equal, transitions are still emitted in this order.
var subStatusRank = map[types.SubStatus]int{
	types.SubStatusNotYetOpen:            0,
	types.SubStatusRegistrationOpen:      1,
	types.SubStatusRegistrationClosed:    2,
	types.SubStatusEventStarted:          3,
	types.SubStatusEventEnded:            4,
	types.SubStatusCertificatesAvailable: 5,
	types.SubStatusCompleted:             6,
}

// Transitions returns the ordered transition sequence for an event.
//
// Each present timestamp contributes one transition, except the certificate
// deadline which contributes two: certificates become available and the
// lifecycle completes, at the same instant, in that order. Transitions whose
// timestamp is absent are omitted; the remaining ones keep their causal order
// even when their instants tie or are mis-ordered.
func Transitions(ev *types.Event) []types.Transition {
	out := make([]types.Transition, 0, 6)

	add := func(at *time.Time, cat types.StatusCategory, sub types.SubStatus) {
		if at == nil {
			return
		}
		out = append(out, types.Transition{At: *at, Category: cat, SubStatus: sub})
	}

	add(ev.RegistrationStart, types.CategoryUpcoming, types.SubStatusRegistrationOpen)
	add(ev.RegistrationEnd, types.CategoryUpcoming, types.SubStatusRegistrationClosed)
	add(ev.StartTime, types.CategoryOngoing, types.SubStatusEventStarted)
	add(ev.EndTime, types.CategoryCompleted, types.SubStatusEventEnded)
	add(ev.CertificateDeadline, types.CategoryCompleted, types.SubStatusCertificatesAvailable)
	add(ev.CertificateDeadline, types.CategoryCompleted, types.SubStatusCompleted)

	return out
}

// StatusAt returns the event's lifecycle state at instant t: the last
// transition whose instant is at or before t, or the implicit
// (upcoming, not_yet_open) state when none has occurred yet.
func StatusAt(ev *types.Event, t time.Time) (types.StatusCategory, types.SubStatus) {
	cat, sub := types.CategoryUpcoming, types.SubStatusNotYetOpen
	for _, tr := range Transitions(ev) {
		if tr.At.After(t) {
			break
		}
		cat, sub = tr.Category, tr.SubStatus
	}
	return cat, sub
}

// splitAt partitions an event's transitions into those due at or before now
// (to be applied immediately at rebuild) and those strictly in the future
// (the first of which becomes the pending trigger). A mis-ordered instant
// earlier than now is therefore treated as already past.
func splitAt(ev *types.Event, now time.Time) (due []types.Transition, future []types.Transition) {
	all := Transitions(ev)
	for i, tr := range all {
		if tr.At.After(now) {
			return all[:i], all[i:]
		}
	}
	return all, nil
}

// nextAfter returns the first transition causally after the fired one in the
// event's current timeline, or nil when the fired transition was the last.
//
// Succession goes by causal rank, not instant: a retried trigger fires later
// than its scheduled instant, and that delay must not skip the successors
// whose instants it overtook. The event is re-fetched before this is called,
// so a timestamp edit that raced the firing is reflected in the returned
// instant.
func nextAfter(ev *types.Event, fired types.Transition) *types.Transition {
	firedRank := subStatusRank[fired.SubStatus]
	for _, tr := range Transitions(ev) {
		if subStatusRank[tr.SubStatus] > firedRank {
			next := tr
			return &next
		}
	}
	return nil
}
