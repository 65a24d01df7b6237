package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"nexus/pkg/exception"
)

// Queue is an unbounded FIFO with a single consumer.
// Put never blocks, so producers such as strategy callbacks are not stalled by a slow connector.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
	closed uint32
}

// NewQueue allocates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{notify: make(chan struct{}, 1)}
}

// Put appends an item without blocking.
func (q *Queue[T]) Put(item T) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return exception.ErrOrderQueueClosed
	}

	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the queue from accepting new items. Pending items are still consumed by Run.
func (q *Queue[T]) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		q.signal()
	}
}

// Run consumes items in order until the context is done, or the queue is closed and drained.
// The handler of an item returns before the next item is taken.
func (q *Queue[T]) Run(ctx context.Context, handler func(context.Context, T)) {
	for {
		item, ok := q.pop()
		if ok {
			handler(ctx, item)
			continue
		}

		if atomic.LoadUint32(&q.closed) != 0 {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		}
	}
}

func (q *Queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
