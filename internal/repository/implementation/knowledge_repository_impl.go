package implementation

import (
	"context"
	"errors"

	"ai-support-be/internal/constant"
	"ai-support-be/internal/entity"
	"ai-support-be/internal/mapper"
	"ai-support-be/internal/model"
	"ai-support-be/internal/repository/contract"
	"ai-support-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type IngestDocumentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeMapper
}

func NewIngestDocumentRepository(db *gorm.DB) contract.IngestDocumentRepository {
	return &IngestDocumentRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeMapper(),
	}
}

func (r *IngestDocumentRepositoryImpl) Create(ctx context.Context, document *entity.IngestDocument) error {
	m := r.mapper.DocumentToModel(document)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*document = *r.mapper.DocumentToEntity(m)
	return nil
}

func (r *IngestDocumentRepositoryImpl) Transition(ctx context.Context, id uuid.UUID, change contract.StatusChange) (bool, error) {
	if !constant.CanTransitionIngest(change.From, change.To) {
		return false, nil
	}
	updates := map[string]interface{}{"status": change.To}
	if change.To == constant.IngestStatusCompleted && change.Content != nil {
		updates["content"] = *change.Content
	}
	if change.ErrorMessage != nil {
		updates["error_message"] = *change.ErrorMessage
	}
	res := r.db.WithContext(ctx).
		Model(&model.IngestDocument{}).
		Where("id = ? AND status = ?", id, change.From).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *IngestDocumentRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.IngestDocument{}, id).Error
}

func (r *IngestDocumentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.IngestDocument, error) {
	var m model.IngestDocument
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.DocumentToEntity(&m), nil
}

func (r *IngestDocumentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.IngestDocument, error) {
	var models []*model.IngestDocument
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.DocumentsToEntities(models), nil
}

func (r *IngestDocumentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.IngestDocument{}).Count(&count).Error
	return count, err
}

type KnowledgeEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeMapper
}

func NewKnowledgeEmbeddingRepository(db *gorm.DB) contract.KnowledgeEmbeddingRepository {
	return &KnowledgeEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeMapper(),
	}
}

func (r *KnowledgeEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := make([]*model.KnowledgeEmbedding, len(chunks))
	for i, c := range chunks {
		models[i] = r.mapper.ChunkToModel(c)
	}

	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	for i, m := range models {
		*chunks[i] = *r.mapper.ChunkToEntity(m)
	}
	return nil
}

func (r *KnowledgeEmbeddingRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentId).Delete(&model.KnowledgeEmbedding{}).Error
}

func (r *KnowledgeEmbeddingRepositoryImpl) DeleteBySource(ctx context.Context, organizationId uuid.UUID, source string) error {
	return r.db.WithContext(ctx).
		Where("organization_id = ? AND source = ? AND document_id IS NULL", organizationId, source).
		Delete(&model.KnowledgeEmbedding{}).Error
}

func (r *KnowledgeEmbeddingRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.KnowledgeEmbedding{}).Count(&count).Error
	return count, err
}

func (r *KnowledgeEmbeddingRepositoryImpl) SearchSimilar(ctx context.Context, embedding []float32, limit int, organizationId uuid.UUID) ([]*contract.ScoredKnowledgeChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.KnowledgeEmbedding
		Distance float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	// Cosine distance: embedding_value <=> query
	err := r.db.WithContext(ctx).
		Table("knowledge_embeddings").
		Select("knowledge_embeddings.*, (embedding_value <=> ?) as distance", queryVector).
		Where("organization_id = ?", organizationId).
		Order("distance ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredKnowledgeChunk, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredKnowledgeChunk{
			Chunk:    r.mapper.ChunkToEntity(&res.KnowledgeEmbedding),
			Distance: res.Distance,
		}
	}
	return scored, nil
}
