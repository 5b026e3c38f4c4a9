package scheduler

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"eventline/internal/types"
)

func trg(eventID string, fireAt time.Time, sub types.SubStatus) types.Trigger {
	return types.Trigger{
		EventID:   eventID,
		FireAt:    fireAt,
		Category:  types.CategoryOngoing,
		SubStatus: sub,
	}
}

func TestTriggerQueue_PopOrdersByFireAt(t *testing.T) {
	q := NewTriggerQueue()
	a := trg("evt-a", base.Add(3*time.Hour), types.SubStatusEventStarted)
	b := trg("evt-b", base.Add(1*time.Hour), types.SubStatusEventStarted)
	c := trg("evt-c", base.Add(2*time.Hour), types.SubStatusEventStarted)
	q.Upsert(a.EventID, &a)
	q.Upsert(b.EventID, &b)
	q.Upsert(c.EventID, &c)

	for _, want := range []string{"evt-b", "evt-c", "evt-a"} {
		got, ok := q.PopEarliest()
		if !ok {
			t.Fatalf("expected trigger %s, queue empty", want)
		}
		if got.EventID != want {
			t.Errorf("pop order: got %s, want %s", got.EventID, want)
		}
	}
	if _, ok := q.PopEarliest(); ok {
		t.Error("queue should be empty after popping all triggers")
	}
}

func TestTriggerQueue_TieBrokenByCausalRankThenEventID(t *testing.T) {
	q := NewTriggerQueue()
	at := base.Add(time.Hour)
	completed := trg("evt-a", at, types.SubStatusCompleted)
	certs := trg("evt-b", at, types.SubStatusCertificatesAvailable)
	q.Upsert(completed.EventID, &completed)
	q.Upsert(certs.EventID, &certs)

	first, _ := q.PopEarliest()
	if first.SubStatus != types.SubStatusCertificatesAvailable {
		t.Errorf("same instant must pop lower causal rank first, got %s", first.SubStatus)
	}

	// Same instant and rank: event ID decides.
	x := trg("evt-x", at, types.SubStatusEventStarted)
	y := trg("evt-y", at, types.SubStatusEventStarted)
	q.Upsert(y.EventID, &y)
	q.Upsert(x.EventID, &x)
	first, _ = q.PopEarliest()
	if first.EventID != "evt-x" {
		t.Errorf("same instant and rank must pop smaller event ID first, got %s", first.EventID)
	}
}

func TestTriggerQueue_UpsertReplacesPendingTrigger(t *testing.T) {
	q := NewTriggerQueue()
	old := trg("evt-a", base.Add(time.Hour), types.SubStatusEventStarted)
	q.Upsert(old.EventID, &old)

	fresh := trg("evt-a", base.Add(10*time.Minute), types.SubStatusRegistrationOpen)
	q.Upsert(fresh.EventID, &fresh)

	if got := q.Len(); got != 1 {
		t.Fatalf("upsert must replace, not add: len=%d", got)
	}
	got, _ := q.PeekEarliest()
	if !got.FireAt.Equal(fresh.FireAt) || got.SubStatus != fresh.SubStatus {
		t.Errorf("peek returned stale trigger: %+v", got)
	}
}

func TestTriggerQueue_UpsertNilRemoves(t *testing.T) {
	q := NewTriggerQueue()
	a := trg("evt-a", base, types.SubStatusEventStarted)
	q.Upsert(a.EventID, &a)
	q.Upsert("evt-a", nil)
	if q.Len() != 0 {
		t.Error("nil upsert must remove the pending trigger")
	}
	// Removing an absent event is a no-op.
	q.Remove("evt-missing")
	q.Upsert("evt-missing", nil)
}

func TestTriggerQueue_RemoveKeepsHeapConsistent(t *testing.T) {
	q := NewTriggerQueue()
	for i := 0; i < 5; i++ {
		tr := trg(fmt.Sprintf("evt-%d", i), base.Add(time.Duration(i)*time.Hour), types.SubStatusEventStarted)
		q.Upsert(tr.EventID, &tr)
	}
	q.Remove("evt-2")
	q.Remove("evt-0")

	var order []string
	for {
		tr, ok := q.PopEarliest()
		if !ok {
			break
		}
		order = append(order, tr.EventID)
	}
	want := []string{"evt-1", "evt-3", "evt-4"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestTriggerQueue_RestoreIfAbsent(t *testing.T) {
	q := NewTriggerQueue()
	popped := trg("evt-a", base, types.SubStatusEventStarted)
	q.Upsert(popped.EventID, &popped)
	q.PopEarliest()

	if !q.RestoreIfAbsent(popped) {
		t.Error("restore must succeed when no fresh trigger exists")
	}

	// A rebuild raced in with a fresher trigger; the stale restore loses.
	q.PopEarliest()
	fresh := trg("evt-a", base.Add(time.Hour), types.SubStatusEventEnded)
	q.Upsert(fresh.EventID, &fresh)
	if q.RestoreIfAbsent(popped) {
		t.Error("restore must not clobber a fresher trigger")
	}
	got, _ := q.PeekEarliest()
	if got.SubStatus != types.SubStatusEventEnded {
		t.Errorf("fresher trigger lost: %+v", got)
	}
}

func TestTriggerQueue_EmptyBehavior(t *testing.T) {
	q := NewTriggerQueue()
	if q.Len() != 0 {
		t.Error("new queue must be empty")
	}
	if _, ok := q.PeekEarliest(); ok {
		t.Error("peek on empty queue must report not ok")
	}
	if _, ok := q.PopEarliest(); ok {
		t.Error("pop on empty queue must report not ok")
	}
}

func TestTriggerQueue_ConcurrentUpsertAndPop(t *testing.T) {
	q := NewTriggerQueue()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr := trg(fmt.Sprintf("evt-%d-%d", g, i%10), base.Add(time.Duration(i)*time.Minute), types.SubStatusEventStarted)
				q.Upsert(tr.EventID, &tr)
				if i%3 == 0 {
					q.PopEarliest()
				}
				if i%7 == 0 {
					q.Remove(tr.EventID)
				}
			}
		}(g)
	}
	wg.Wait()

	// Drain what remains; every pop must be consistent with the index.
	seen := make(map[string]bool)
	for {
		tr, ok := q.PopEarliest()
		if !ok {
			break
		}
		if seen[tr.EventID] {
			t.Fatalf("event %s popped twice", tr.EventID)
		}
		seen[tr.EventID] = true
	}
	if q.Len() != 0 {
		t.Error("queue not empty after drain")
	}
}
