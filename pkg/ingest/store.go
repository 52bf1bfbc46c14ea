package ingest

import (
	"context"
	"errors"

	"ai-support-be/internal/entity"
	"ai-support-be/internal/repository/contract"
	"ai-support-be/internal/repository/specification"
	"ai-support-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore is the durable record of submitted documents.
type DocumentStore interface {
	Create(ctx context.Context, doc *entity.IngestDocument) error
	Get(ctx context.Context, id uuid.UUID) (*entity.IngestDocument, error)
	List(ctx context.Context, organizationID uuid.UUID, status string) ([]*entity.IngestDocument, error)
	Transition(ctx context.Context, id uuid.UUID, change contract.StatusChange) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type uowDocumentStore struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewDocumentStore(uowFactory unitofwork.RepositoryFactory) DocumentStore {
	return &uowDocumentStore{uowFactory: uowFactory}
}

func (s *uowDocumentStore) Create(ctx context.Context, doc *entity.IngestDocument) error {
	return s.uowFactory.NewUnitOfWork(ctx).IngestDocumentRepository().Create(ctx, doc)
}

func (s *uowDocumentStore) Get(ctx context.Context, id uuid.UUID) (*entity.IngestDocument, error) {
	doc, err := s.uowFactory.NewUnitOfWork(ctx).IngestDocumentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *uowDocumentStore) List(ctx context.Context, organizationID uuid.UUID, status string) ([]*entity.IngestDocument, error) {
	specs := []specification.Specification{
		specification.ByOrganizationID{OrganizationID: organizationID},
		specification.OrderBy{Field: "created_at", Desc: true},
	}
	if status != "" {
		specs = append(specs, specification.ByStatus{Status: status})
	}
	return s.uowFactory.NewUnitOfWork(ctx).IngestDocumentRepository().FindAll(ctx, specs...)
}

func (s *uowDocumentStore) Transition(ctx context.Context, id uuid.UUID, change contract.StatusChange) (bool, error) {
	return s.uowFactory.NewUnitOfWork(ctx).IngestDocumentRepository().Transition(ctx, id, change)
}

func (s *uowDocumentStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.uowFactory.NewUnitOfWork(ctx).IngestDocumentRepository().Delete(ctx, id)
}
