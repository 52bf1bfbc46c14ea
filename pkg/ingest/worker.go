package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-support-be/internal/constant"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/pkg/metrics"
	"ai-support-be/internal/repository/contract"
	"ai-support-be/pkg/broker"
	"ai-support-be/pkg/processor"
	"ai-support-be/pkg/queue"
	"ai-support-be/pkg/vectorindex"
)

// SourceProcessor normalizes one input into text.
type SourceProcessor interface {
	Process(ctx context.Context, in processor.Input) (processor.Result, error)
}

// Worker drains the ingest queue one event at a time, in order.
type Worker struct {
	queue     queue.Queue[IngestEvent]
	store     DocumentStore
	processor SourceProcessor
	index     vectorindex.VectorIndex
	notifier  *Notifier
	logger    logger.ILogger
	timeout   time.Duration
}

func NewWorker(
	q queue.Queue[IngestEvent],
	store DocumentStore,
	proc SourceProcessor,
	index vectorindex.VectorIndex,
	notifier *Notifier,
	logger logger.ILogger,
	timeout time.Duration,
) *Worker {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Worker{
		queue:     q,
		store:     store,
		processor: proc,
		index:     index,
		notifier:  notifier,
		logger:    logger,
		timeout:   timeout,
	}
}

// Run blocks until ctx is done or the queue is closed.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("INGEST", "Worker started", nil)
	for {
		ev, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				w.logger.Info("INGEST", "Worker stopped", nil)
				return nil
			}
			w.logger.Error("INGEST", "Dequeue failed", map[string]interface{}{"error": err.Error()})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		w.Handle(ctx, ev)
	}
}

// Handle processes a single event to a terminal status. Only the processing
// step honours ctx cancellation; status writes run detached so a document
// interrupted by shutdown still ends Failed and stays resubmittable.
func (w *Worker) Handle(ctx context.Context, ev IngestEvent) {
	fields := map[string]interface{}{
		"document_id":     ev.DocumentID.String(),
		"organization_id": ev.OrganizationID.String(),
		"source_type":     ev.SourceType,
	}
	writeCtx := context.WithoutCancel(ctx)

	ok, err := w.store.Transition(writeCtx, ev.DocumentID, contract.StatusChange{
		From: constant.IngestStatusPending,
		To:   constant.IngestStatusProcessing,
	})
	if err != nil {
		fields["error"] = err.Error()
		w.logger.Error("INGEST", "Failed to mark document processing", fields)
		return
	}
	if !ok {
		w.logger.Warn("INGEST", "Document is not pending, skipping", fields)
		return
	}
	w.notify(writeCtx, ev, constant.IngestStatusProcessing, "")

	started := time.Now()
	content, err := w.process(ctx, ev)
	metrics.IngestDuration.WithLabelValues(ev.SourceType).Observe(time.Since(started).Seconds())

	if err != nil {
		msg := err.Error()
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			msg = ErrInterrupted.Error()
		}
		ok, terr := w.store.Transition(writeCtx, ev.DocumentID, contract.StatusChange{
			From:         constant.IngestStatusProcessing,
			To:           constant.IngestStatusFailed,
			ErrorMessage: &msg,
		})
		if terr != nil {
			fields["error"] = terr.Error()
			w.logger.Error("INGEST", "Failed to mark document failed", fields)
			return
		}
		fields["error"] = msg
		if !ok {
			w.logger.Warn("INGEST", "Document removed while processing", fields)
			return
		}
		w.logger.Warn("INGEST", "Document failed", fields)
		w.notify(writeCtx, ev, constant.IngestStatusFailed, msg)
		return
	}

	ok, err = w.store.Transition(writeCtx, ev.DocumentID, contract.StatusChange{
		From:    constant.IngestStatusProcessing,
		To:      constant.IngestStatusCompleted,
		Content: &content,
	})
	if err != nil {
		fields["error"] = err.Error()
		w.logger.Error("INGEST", "Failed to mark document completed", fields)
		return
	}
	if !ok {
		// Deleted mid-flight: the fresh chunks have no row left to own them.
		if rerr := w.index.Remove(writeCtx, ev.DocumentID); rerr != nil {
			fields["error"] = rerr.Error()
			w.logger.Error("INGEST", "Failed to remove chunks of deleted document", fields)
			return
		}
		w.logger.Warn("INGEST", "Document removed while processing, chunks dropped", fields)
		return
	}
	fields["chars"] = len(content)
	w.logger.Info("INGEST", "Document completed", fields)
	w.notify(writeCtx, ev, constant.IngestStatusCompleted, "")
}

// process runs the processor and the upsert under the per-document timeout.
// A panic in either becomes an error.
func (w *Worker) process(ctx context.Context, ev IngestEvent) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	res, err := w.processor.Process(ctx, ev.input())
	if err != nil {
		return "", err
	}

	err = w.index.Upsert(ctx, ev.OrganizationID, vectorindex.Document{
		DocumentID:  &ev.DocumentID,
		Source:      ev.source(),
		Text:        res.Text,
		ContentType: res.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("index: %w", err)
	}
	return res.Text, nil
}

func (w *Worker) notify(ctx context.Context, ev IngestEvent, status, errMsg string) {
	w.notifier.Notify(ctx, ev.SourceType, broker.StatusEvent{
		OrganizationID: ev.OrganizationID,
		DocumentID:     ev.DocumentID,
		Name:           ev.Name,
		Status:         status,
		Error:          errMsg,
	})
}
