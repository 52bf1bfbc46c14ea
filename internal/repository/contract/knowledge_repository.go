package contract

import (
	"context"

	"ai-support-be/internal/entity"
	"ai-support-be/internal/repository/specification"

	"github.com/google/uuid"
)

// StatusChange describes one forward move of an ingest document.
type StatusChange struct {
	From         string
	To           string
	Content      *string
	ErrorMessage *string
}

type IngestDocumentRepository interface {
	Create(ctx context.Context, document *entity.IngestDocument) error
	// Transition applies the change only if the row is still in change.From.
	Transition(ctx context.Context, id uuid.UUID, change StatusChange) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.IngestDocument, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.IngestDocument, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

// ScoredKnowledgeChunk wraps KnowledgeChunk with its cosine distance
type ScoredKnowledgeChunk struct {
	Chunk    *entity.KnowledgeChunk
	Distance float64 // 0.0 = identical
}

type KnowledgeEmbeddingRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.KnowledgeChunk) error
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
	DeleteBySource(ctx context.Context, organizationId uuid.UUID, source string) error
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	SearchSimilar(ctx context.Context, embedding []float32, limit int, organizationId uuid.UUID) ([]*ScoredKnowledgeChunk, error)
}
