package ingest

import (
	"context"
	"sync"

	"ai-support-be/internal/constant"
	"ai-support-be/internal/entity"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/repository/contract"
	"ai-support-be/pkg/broker"
	"ai-support-be/pkg/processor"
	"ai-support-be/pkg/queue/memory"
	"ai-support-be/pkg/vectorindex"

	"github.com/google/uuid"
)

type memStore struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*entity.IngestDocument
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[uuid.UUID]*entity.IngestDocument)}
}

func (s *memStore) Create(_ context.Context, doc *entity.IngestDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.docs[doc.Id] = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*entity.IngestDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *memStore) List(_ context.Context, org uuid.UUID, status string) ([]*entity.IngestDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.IngestDocument
	for _, d := range s.docs {
		if d.OrganizationId == org && (status == "" || d.Status == status) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) Transition(ctx context.Context, id uuid.UUID, change contract.StatusChange) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.Status != change.From || !constant.CanTransitionIngest(change.From, change.To) {
		return false, nil
	}
	doc.Status = change.To
	if change.Content != nil {
		doc.Content = change.Content
	}
	if change.ErrorMessage != nil {
		doc.ErrorMessage = change.ErrorMessage
	}
	return true, nil
}

func (s *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *memStore) status(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id].Status
}

type fakeIndex struct {
	mu        sync.Mutex
	upserts   []vectorindex.Document
	removed   []uuid.UUID
	upsertErr error
}

func (f *fakeIndex) Search(context.Context, uuid.UUID, string, int) ([]vectorindex.Snippet, error) {
	return nil, nil
}

func (f *fakeIndex) Upsert(_ context.Context, _ uuid.UUID, doc vectorindex.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, doc)
	return nil
}

func (f *fakeIndex) Remove(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	live := f.upserts[:0]
	for _, d := range f.upserts {
		if d.DocumentID == nil || *d.DocumentID != id {
			live = append(live, d)
		}
	}
	f.upserts = live
	return nil
}

// indexed reports the upserted documents still present for id.
func (f *fakeIndex) indexed(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.upserts {
		if d.DocumentID != nil && *d.DocumentID == id {
			n++
		}
	}
	return n
}

type recordingBroker struct {
	mu     sync.Mutex
	events []broker.StatusEvent
}

func (b *recordingBroker) Publish(_ context.Context, ev broker.StatusEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBroker) Subscribe(context.Context, uuid.UUID) (<-chan broker.StatusEvent, error) {
	return make(chan broker.StatusEvent), nil
}

func (b *recordingBroker) Close() error { return nil }

func (b *recordingBroker) statuses(id uuid.UUID) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, ev := range b.events {
		if ev.DocumentID == id {
			out = append(out, ev.Status)
		}
	}
	return out
}

type processorFunc func(ctx context.Context, in processor.Input) (processor.Result, error)

func (f processorFunc) Process(ctx context.Context, in processor.Input) (processor.Result, error) {
	return f(ctx, in)
}

type harness struct {
	store   *memStore
	index   *fakeIndex
	broker  *recordingBroker
	queue   *memory.FIFO[IngestEvent]
	worker  *Worker
	service IService
}

func newHarness(proc SourceProcessor) *harness {
	h := &harness{
		store:  newMemStore(),
		index:  &fakeIndex{},
		broker: &recordingBroker{},
		queue:  memory.NewFIFO[IngestEvent](),
	}
	log := logger.NewNopLogger()
	notifier := NewNotifier(h.broker, nil, log)
	h.worker = NewWorker(h.queue, h.store, proc, h.index, notifier, log, 0)
	h.service = NewService(h.queue, h.store, h.index, h.broker, notifier, log)
	return h
}

// drain handles everything currently queued.
func (h *harness) drain(ctx context.Context) {
	for h.queue.Len() > 0 {
		ev, err := h.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		h.worker.Handle(ctx, ev)
	}
}
