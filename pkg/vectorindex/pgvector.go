package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-support-be/internal/entity"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/repository/unitofwork"
	"ai-support-be/pkg/embedding"
	"ai-support-be/pkg/utils"

	"github.com/google/uuid"
)

const (
	ContentTypeMarkdown = "text/markdown"
	ContentTypePlain    = "text/plain"
)

var ErrEmptyDocument = errors.New("document has no text")

type PgVectorIndex struct {
	uowFactory   unitofwork.RepositoryFactory
	embedder     embedding.EmbeddingProvider
	logger       logger.ILogger
	chunkSize    int
	chunkOverlap int
}

func NewPgVectorIndex(uowFactory unitofwork.RepositoryFactory, embedder embedding.EmbeddingProvider, logger logger.ILogger) *PgVectorIndex {
	return &PgVectorIndex{
		uowFactory:   uowFactory,
		embedder:     embedder,
		logger:       logger,
		chunkSize:    utils.DefaultChunkSize,
		chunkOverlap: utils.DefaultChunkOverlap,
	}
}

var _ VectorIndex = (*PgVectorIndex)(nil)

func (p *PgVectorIndex) Search(ctx context.Context, collection uuid.UUID, query string, k int) ([]Snippet, error) {
	res, err := p.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	uow := p.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.KnowledgeEmbeddingRepository().SearchSimilar(ctx, res.Embedding.Values, k, collection)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}

	out := make([]Snippet, 0, len(scored))
	for _, s := range scored {
		out = append(out, Snippet{
			Content:    s.Chunk.Content,
			Source:     s.Chunk.Source,
			Distance:   s.Distance,
			DocumentID: s.Chunk.DocumentId,
		})
	}
	return out, nil
}

// Upsert replaces every chunk previously stored for the same document (or,
// for documents without an id, the same source) in one transaction.
func (p *PgVectorIndex) Upsert(ctx context.Context, collection uuid.UUID, doc Document) error {
	pieces := chunk(doc, p.chunkSize, p.chunkOverlap)
	if len(pieces) == 0 {
		return ErrEmptyDocument
	}

	chunks := make([]*entity.KnowledgeChunk, 0, len(pieces))
	for i, piece := range pieces {
		res, err := p.embedder.Generate(ctx, piece, embedding.TaskRetrievalDocument)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		chunks = append(chunks, &entity.KnowledgeChunk{
			Id:             uuid.New(),
			OrganizationId: collection,
			DocumentId:     doc.DocumentID,
			Source:         doc.Source,
			Content:        piece,
			ContentType:    doc.ContentType,
			ChunkIndex:     i,
			EmbeddingValue: res.Embedding.Values,
			CreatedAt:      time.Now(),
		})
	}

	uow := p.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer uow.Rollback()

	repo := uow.KnowledgeEmbeddingRepository()
	var err error
	if doc.DocumentID != nil {
		err = repo.DeleteByDocumentId(ctx, *doc.DocumentID)
	} else {
		err = repo.DeleteBySource(ctx, collection, doc.Source)
	}
	if err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	if err := repo.CreateBulk(ctx, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	p.logger.Info("VECTOR_INDEX", "Document indexed", map[string]interface{}{
		"collection": collection.String(),
		"source":     doc.Source,
		"chunks":     len(chunks),
	})
	return nil
}

func (p *PgVectorIndex) Remove(ctx context.Context, documentID uuid.UUID) error {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	return uow.KnowledgeEmbeddingRepository().DeleteByDocumentId(ctx, documentID)
}

func chunk(doc Document, size, overlap int) []string {
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}
	if doc.ContentType == ContentTypeMarkdown {
		return utils.SplitMarkdown(doc.Text, size, overlap)
	}
	return utils.SplitText(doc.Text, size, overlap)
}
