package observer

import (
	"time"

	"github.com/driftsync/driftsync/internal/events"
)

// SyncQueue enqueues the path of every added or modified file on a
// thread-safe FIFO for a downstream consumer to drain.
type SyncQueue struct {
	queue *events.Queue[string]
}

// NewSyncQueue subscribes a queue observer on bus.
func NewSyncQueue(bus *events.Bus) *SyncQueue {
	q := &SyncQueue{queue: events.NewQueue[string]()}

	events.Subscribe(bus, func(e events.FileAdded) {
		q.queue.Push(e.Metadata.FilePath)
	})
	events.Subscribe(bus, func(e events.FileModified) {
		q.queue.Push(e.FilePath)
	})

	return q
}

// Pop blocks until a path is available or the queue shuts down.
func (q *SyncQueue) Pop() (string, bool) { return q.queue.Pop() }

// PopTimeout blocks up to d for a path.
func (q *SyncQueue) PopTimeout(d time.Duration) (string, bool) { return q.queue.PopTimeout(d) }

// TryPop removes the head without blocking.
func (q *SyncQueue) TryPop() (string, bool) { return q.queue.TryPop() }

// Len returns the number of queued paths.
func (q *SyncQueue) Len() int { return q.queue.Len() }

// Shutdown wakes all blocked consumers.
func (q *SyncQueue) Shutdown() { q.queue.Shutdown() }
