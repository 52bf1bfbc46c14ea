package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"ai-support-be/internal/constant"
	"ai-support-be/internal/entity"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/pkg/broker"
	"ai-support-be/pkg/queue"
	"ai-support-be/pkg/vectorindex"

	"github.com/google/uuid"
)

var (
	ErrInvalidSourceType = errors.New("invalid source type")
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrNotResubmittable  = errors.New("only failed documents can be resubmitted")
	ErrInterrupted       = errors.New("processing interrupted by shutdown, resubmit to retry")
)

// Payload carries the source. Which field is read depends on the source type.
type Payload struct {
	Name     string
	URL      string
	Data     []byte
	Filename string
	Text     string
}

type IService interface {
	// EnqueueIngest records a Pending document and queues it. It does not wait for processing.
	EnqueueIngest(ctx context.Context, organizationID uuid.UUID, sourceType string, payload Payload) (*entity.IngestDocument, error)
	GetDocument(ctx context.Context, organizationID, documentID uuid.UUID) (*entity.IngestDocument, error)
	ListDocuments(ctx context.Context, organizationID uuid.UUID, status string) ([]*entity.IngestDocument, error)
	DeleteDocument(ctx context.Context, organizationID, documentID uuid.UUID) error
	Resubmit(ctx context.Context, organizationID, documentID uuid.UUID) (*entity.IngestDocument, error)
	SubscribeIngestStatus(ctx context.Context, organizationID uuid.UUID) (<-chan broker.StatusEvent, error)
}

type service struct {
	queue    queue.Queue[IngestEvent]
	store    DocumentStore
	index    vectorindex.VectorIndex
	broker   broker.StatusBroker
	notifier *Notifier
	logger   logger.ILogger
}

func NewService(
	q queue.Queue[IngestEvent],
	store DocumentStore,
	index vectorindex.VectorIndex,
	b broker.StatusBroker,
	notifier *Notifier,
	logger logger.ILogger,
) IService {
	return &service{
		queue:    q,
		store:    store,
		index:    index,
		broker:   b,
		notifier: notifier,
		logger:   logger,
	}
}

func validate(sourceType string, p Payload) error {
	switch sourceType {
	case constant.SourceTypeUrl:
		u, err := url.Parse(strings.TrimSpace(p.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: url must be absolute http(s)", ErrInvalidPayload)
		}
	case constant.SourceTypeDocument:
		if len(p.Data) == 0 {
			return fmt.Errorf("%w: document is empty", ErrInvalidPayload)
		}
	case constant.SourceTypeText:
		if strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("%w: text is empty", ErrInvalidPayload)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSourceType, sourceType)
	}
	return nil
}

func displayName(sourceType string, p Payload) string {
	if p.Name != "" {
		return p.Name
	}
	switch sourceType {
	case constant.SourceTypeUrl:
		return strings.TrimSpace(p.URL)
	case constant.SourceTypeDocument:
		if p.Filename != "" {
			return p.Filename
		}
		return "document"
	default:
		text := []rune(strings.TrimSpace(p.Text))
		if len(text) > 60 {
			return string(text[:60]) + "..."
		}
		return string(text)
	}
}

func (s *service) EnqueueIngest(ctx context.Context, organizationID uuid.UUID, sourceType string, payload Payload) (*entity.IngestDocument, error) {
	if err := validate(sourceType, payload); err != nil {
		return nil, err
	}

	doc := &entity.IngestDocument{
		Id:             uuid.New(),
		OrganizationId: organizationID,
		Name:           displayName(sourceType, payload),
		SourceType:     sourceType,
		Status:         constant.IngestStatusPending,
	}
	ev := IngestEvent{
		DocumentID:     doc.Id,
		OrganizationID: organizationID,
		Name:           doc.Name,
		SourceType:     sourceType,
	}
	switch sourceType {
	case constant.SourceTypeUrl:
		u := strings.TrimSpace(payload.URL)
		doc.SourceUrl = &u
		ev.URL = u
	case constant.SourceTypeDocument:
		doc.Payload = payload.Data
		ev.Data = payload.Data
		ev.Filename = payload.Filename
	case constant.SourceTypeText:
		doc.Payload = []byte(payload.Text)
		ev.Text = payload.Text
	}

	if err := s.store.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	// Not atomic with the insert: a failed enqueue leaves a Pending orphan
	if err := s.queue.Enqueue(ctx, ev); err != nil {
		s.logger.Error("INGEST", "Failed to enqueue document", map[string]interface{}{
			"document_id": doc.Id.String(),
			"error":       err.Error(),
		})
		return nil, fmt.Errorf("enqueue document: %w", err)
	}

	s.notifier.Notify(ctx, sourceType, broker.StatusEvent{
		OrganizationID: organizationID,
		DocumentID:     doc.Id,
		Name:           doc.Name,
		Status:         constant.IngestStatusPending,
	})
	s.logger.Info("INGEST", "Document submitted", map[string]interface{}{
		"document_id":     doc.Id.String(),
		"organization_id": organizationID.String(),
		"source_type":     sourceType,
		"queue_len":       s.queue.Len(),
	})
	return doc, nil
}

func (s *service) GetDocument(ctx context.Context, organizationID, documentID uuid.UUID) (*entity.IngestDocument, error) {
	doc, err := s.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OrganizationId != organizationID {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *service) ListDocuments(ctx context.Context, organizationID uuid.UUID, status string) ([]*entity.IngestDocument, error) {
	return s.store.List(ctx, organizationID, status)
}

func (s *service) DeleteDocument(ctx context.Context, organizationID, documentID uuid.UUID) error {
	if _, err := s.GetDocument(ctx, organizationID, documentID); err != nil {
		return err
	}
	if err := s.index.Remove(ctx, documentID); err != nil {
		return fmt.Errorf("remove chunks: %w", err)
	}
	return s.store.Delete(ctx, documentID)
}

// Resubmit creates a fresh Pending document from a Failed one. The Failed row is left as is.
func (s *service) Resubmit(ctx context.Context, organizationID, documentID uuid.UUID) (*entity.IngestDocument, error) {
	doc, err := s.GetDocument(ctx, organizationID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != constant.IngestStatusFailed {
		return nil, ErrNotResubmittable
	}

	payload := Payload{Name: doc.Name}
	switch doc.SourceType {
	case constant.SourceTypeUrl:
		if doc.SourceUrl != nil {
			payload.URL = *doc.SourceUrl
		}
	case constant.SourceTypeDocument:
		payload.Data = doc.Payload
		payload.Filename = doc.Name
	case constant.SourceTypeText:
		payload.Text = string(doc.Payload)
	}
	return s.EnqueueIngest(ctx, organizationID, doc.SourceType, payload)
}

func (s *service) SubscribeIngestStatus(ctx context.Context, organizationID uuid.UUID) (<-chan broker.StatusEvent, error) {
	return s.broker.Subscribe(ctx, organizationID)
}
