package matching

import (
	"time"

	"github.com/dennisdiepolder/callbridge/internal/types"
)

// WaitingQueue is the FIFO of suppliers waiting for a free agent.
// A supplier appears at most once.
type WaitingQueue struct {
	waiting     []string             // supplier IDs, front first
	enqueueTime map[string]time.Time // supplierID -> when it joined
}

// NewWaitingQueue creates an empty queue
func NewWaitingQueue() *WaitingQueue {
	return &WaitingQueue{
		waiting:     make([]string, 0),
		enqueueTime: make(map[string]time.Time),
	}
}

// Enqueue appends a supplier unless it is already waiting. Returns false on a duplicate.
func (q *WaitingQueue) Enqueue(id string, now time.Time) bool {
	if _, ok := q.enqueueTime[id]; ok {
		return false
	}
	q.waiting = append(q.waiting, id)
	q.enqueueTime[id] = now
	return true
}

// PositionOf returns the supplier's 1-based position
func (q *WaitingQueue) PositionOf(id string) (int, bool) {
	if _, ok := q.enqueueTime[id]; !ok {
		return 0, false
	}
	for i, v := range q.waiting {
		if v == id {
			return i + 1, true
		}
	}
	return 0, false
}

// Contains reports whether the supplier is waiting
func (q *WaitingQueue) Contains(id string) bool {
	_, ok := q.enqueueTime[id]
	return ok
}

// DequeueFront removes and returns the supplier that has waited longest
func (q *WaitingQueue) DequeueFront() (string, bool) {
	if len(q.waiting) == 0 {
		return "", false
	}
	id := q.waiting[0]
	q.waiting = q.waiting[1:]
	delete(q.enqueueTime, id)
	return id, true
}

// Remove deletes a supplier from anywhere in the queue, keeping the order of the rest
func (q *WaitingQueue) Remove(id string) bool {
	if _, ok := q.enqueueTime[id]; !ok {
		return false
	}
	for i, v := range q.waiting {
		if v == id {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			break
		}
	}
	delete(q.enqueueTime, id)
	return true
}

// Len returns the number of waiting suppliers
func (q *WaitingQueue) Len() int {
	return len(q.waiting)
}

// LongestWaitSecs returns the wait time of the front supplier
func (q *WaitingQueue) LongestWaitSecs(now time.Time) float64 {
	if len(q.waiting) == 0 {
		return 0
	}
	return now.Sub(q.enqueueTime[q.waiting[0]]).Seconds()
}

// Entries returns the queue contents front first
func (q *WaitingQueue) Entries(now time.Time) []types.QueueEntry {
	entries := make([]types.QueueEntry, 0, len(q.waiting))
	for i, id := range q.waiting {
		enqueued := q.enqueueTime[id]
		entries = append(entries, types.QueueEntry{
			SupplierID:  id,
			Position:    i + 1,
			EnqueueTime: enqueued,
			WaitSecs:    now.Sub(enqueued).Seconds(),
		})
	}
	return entries
}
