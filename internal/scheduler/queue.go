// queue.go implements the pending-trigger queue: a min-heap keyed by fire_at
// with a side index by event ID, so the earliest trigger across all events is
// O(1) to peek, O(log n) to pop, and any event's pending trigger is O(log n)
// to replace or remove.
package scheduler

import (
	"container/heap"
	"sync"

	"eventline/internal/types"
)

// TriggerQueue is the time-ordered collection of pending triggers. An event
// has at most one entry at a time; Upsert replaces it wholesale. All methods
// are safe for concurrent use; each runs atomically under one lock so a
// concurrent upsert during a pop is never lost or duplicated.
type TriggerQueue struct {
	mu      sync.Mutex
	items   triggerHeap
	byEvent map[string]*queueItem
}

type queueItem struct {
	trigger types.Trigger
	index   int
}

// NewTriggerQueue returns an empty queue.
func NewTriggerQueue() *TriggerQueue {
	return &TriggerQueue{
		byEvent: make(map[string]*queueItem),
	}
}

// Upsert replaces the event's pending trigger. A nil trigger removes the
// entry (the event has no more future transitions, or was deleted).
func (q *TriggerQueue) Upsert(eventID string, trigger *types.Trigger) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if trigger == nil {
		q.removeLocked(eventID)
		return
	}

	if it, ok := q.byEvent[eventID]; ok {
		it.trigger = *trigger
		heap.Fix(&q.items, it.index)
		return
	}

	it := &queueItem{trigger: *trigger}
	q.byEvent[eventID] = it
	heap.Push(&q.items, it)
}

// RestoreIfAbsent re-inserts a previously popped trigger unless a concurrent
// upsert already installed a fresh one for the event. The loop uses this to
// put a trigger back (retry, or superseded wait) without clobbering a newer
// trigger written by a rebuild that raced the pop. Returns true when the
// trigger was inserted.
func (q *TriggerQueue) RestoreIfAbsent(trigger types.Trigger) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byEvent[trigger.EventID]; ok {
		return false
	}
	it := &queueItem{trigger: trigger}
	q.byEvent[trigger.EventID] = it
	heap.Push(&q.items, it)
	return true
}

// Remove drops any pending trigger for the event. No-op when absent.
func (q *TriggerQueue) Remove(eventID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(eventID)
}

func (q *TriggerQueue) removeLocked(eventID string) {
	it, ok := q.byEvent[eventID]
	if !ok {
		return
	}
	heap.Remove(&q.items, it.index)
	delete(q.byEvent, eventID)
}

// PeekEarliest returns the globally earliest pending trigger without removing
// it. ok is false when the queue is empty.
func (q *TriggerQueue) PeekEarliest() (types.Trigger, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return types.Trigger{}, false
	}
	return q.items[0].trigger, true
}

// PopEarliest atomically removes and returns the globally earliest trigger.
func (q *TriggerQueue) PopEarliest() (types.Trigger, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return types.Trigger{}, false
	}
	it := heap.Pop(&q.items).(*queueItem)
	delete(q.byEvent, it.trigger.EventID)
	return it.trigger, true
}

// Len returns the number of pending triggers.
func (q *TriggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// triggerHeap orders by fire_at, breaking ties by causal rank and then event
// ID so pop order is deterministic.
type triggerHeap []*queueItem

func (h triggerHeap) Len() int { return len(h) }

func (h triggerHeap) Less(i, j int) bool {
	a, b := h[i].trigger, h[j].trigger
	if !a.FireAt.Equal(b.FireAt) {
		return a.FireAt.Before(b.FireAt)
	}
	if ra, rb := subStatusRank[a.SubStatus], subStatusRank[b.SubStatus]; ra != rb {
		return ra < rb
	}
	return a.EventID < b.EventID
}

func (h triggerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *triggerHeap) Push(x any) {
	it := x.(*queueItem)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *triggerHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}
