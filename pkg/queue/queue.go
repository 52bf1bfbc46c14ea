// Package queue defines the contract between ingestion producers and the worker.
package queue

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("queue closed")

// Queue is a FIFO with many producers and one logical consumer.
// Enqueue must not block on a slow consumer.
type Queue[T any] interface {
	Enqueue(ctx context.Context, item T) error
	// Dequeue blocks until an item is available, ctx is done or the queue is closed.
	Dequeue(ctx context.Context) (T, error)
	Len() int
	Close() error
}
