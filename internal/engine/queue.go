package engine

import (
	"sync"
)

// fifo is an unbounded queue with a wake signal for a single consumer.
//
// Unbounded on purpose: submissions must never block, because transitions
// are submitted re-entrantly from handlers and side effects running inside
// the very loop that drains the queue. A bounded channel would deadlock
// there.
type fifo[T any] struct {
	mu     sync.Mutex
	items  []T
	wake   chan struct{}
	closed bool
}

func newFifo[T any]() *fifo[T] {
	return &fifo[T]{wake: make(chan struct{}, 1)}
}

// push appends an item and signals the consumer. It reports false once the
// queue is closed.
func (q *fifo[T]) push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// wait blocks until items are available or the queue is closed and empty.
// The second return is false only in the latter case; pending items are
// always handed out first, so closing never drops work.
func (q *fifo[T]) wait() ([]T, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			items := q.items
			q.items = nil
			q.mu.Unlock()
			return items, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()
		<-q.wake
	}
}

// close stops intake. Items already queued remain drainable via wait.
func (q *fifo[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.wake)
}

// len reports the number of queued items.
func (q *fifo[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
