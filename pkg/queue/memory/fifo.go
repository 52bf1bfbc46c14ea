package memory

import (
	"context"
	"sync"

	"ai-support-be/pkg/queue"
)

// FIFO is an unbounded in-process queue. Items enqueued before Close are
// still delivered; after that Dequeue returns queue.ErrClosed.
type FIFO[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	notify chan struct{}
	done   chan struct{}
}

var _ queue.Queue[int] = (*FIFO[int])(nil)

func NewFIFO[T any]() *FIFO[T] {
	return &FIFO[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *FIFO[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *FIFO[T]) Enqueue(ctx context.Context, item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return queue.ErrClosed
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *FIFO[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				q.signal()
			}
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, queue.ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.notify:
		case <-q.done:
		}
	}
}

func (q *FIFO[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *FIFO[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}
