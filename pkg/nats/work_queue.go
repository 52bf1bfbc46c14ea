package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-support-be/internal/pkg/logger"
	"ai-support-be/pkg/queue"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// WorkQueueConfig names the stream, subject and durable consumer backing a queue.
type WorkQueueConfig struct {
	Stream  string
	Subject string
	Durable string
}

// WorkQueue is a durable queue.Queue on a JetStream work-queue stream. The
// consumer allows one unacknowledged message, so delivery stays in order.
// Messages are acked on Dequeue: the worker has no retry policy.
type WorkQueue[T any] struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	cfg      WorkQueueConfig
	logger   logger.ILogger

	mu     sync.Mutex
	closed bool
}

var _ queue.Queue[int] = (*WorkQueue[int])(nil)

func NewWorkQueue[T any](ctx context.Context, url string, cfg WorkQueueConfig, logger logger.ILogger) (*WorkQueue[T], error) {
	nc, js, err := Connect(url)
	if err != nil {
		return nil, err
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.Stream, err)
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.Stream, jetstream.ConsumerConfig{
		Durable:       cfg.Durable,
		FilterSubject: cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxAckPending: 1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	logger.Info("NATS", "Work queue ready", map[string]interface{}{"stream": cfg.Stream, "durable": cfg.Durable})
	return &WorkQueue[T]{nc: nc, js: js, consumer: consumer, cfg: cfg, logger: logger}, nil
}

func (q *WorkQueue[T]) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *WorkQueue[T]) Enqueue(ctx context.Context, item T) error {
	if q.isClosed() {
		return queue.ErrClosed
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal queue item: %w", err)
	}
	if _, err := q.js.Publish(ctx, q.cfg.Subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", q.cfg.Subject, err)
	}
	return nil
}

func (q *WorkQueue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	for {
		if q.isClosed() {
			return zero, queue.ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		batch, err := q.consumer.Fetch(1, jetstream.FetchMaxWait(2*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrConnectionClosed) {
				return zero, queue.ErrClosed
			}
			return zero, fmt.Errorf("fetch: %w", err)
		}

		for msg := range batch.Messages() {
			var item T
			if err := json.Unmarshal(msg.Data(), &item); err != nil {
				q.logger.Error("NATS", "Dropping undecodable queue message", map[string]interface{}{"error": err.Error()})
				_ = msg.Term()
				continue
			}
			if err := msg.Ack(); err != nil {
				q.logger.Warn("NATS", "Failed to ack queue message", map[string]interface{}{"error": err.Error()})
			}
			return item, nil
		}
		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			q.logger.Warn("NATS", "Fetch batch error", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (q *WorkQueue[T]) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	info, err := q.consumer.Info(ctx)
	if err != nil {
		return 0
	}
	return int(info.NumPending)
}

func (q *WorkQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	q.nc.Close()
	return nil
}
