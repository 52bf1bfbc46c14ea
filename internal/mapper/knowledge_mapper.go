package mapper

import (
	"encoding/json"
	"time"

	"ai-support-be/internal/dto"
	"ai-support-be/internal/entity"
	"ai-support-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type KnowledgeMapper struct{}

func NewKnowledgeMapper() *KnowledgeMapper {
	return &KnowledgeMapper{}
}

func (m *KnowledgeMapper) DocumentToEntity(d *model.IngestDocument) *entity.IngestDocument {
	if d == nil {
		return nil
	}

	var deletedAt *time.Time
	if d.DeletedAt.Valid {
		t := d.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !d.UpdatedAt.IsZero() {
		t := d.UpdatedAt
		updatedAt = &t
	}

	return &entity.IngestDocument{
		Id:             d.Id,
		OrganizationId: d.OrganizationId,
		Name:           d.Name,
		SourceType:     d.SourceType,
		SourceUrl:      d.SourceUrl,
		Payload:        d.Payload,
		Status:         d.Status,
		Content:        d.Content,
		ErrorMessage:   d.ErrorMessage,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      d.DeletedAt.Valid,
	}
}

func (m *KnowledgeMapper) DocumentToModel(d *entity.IngestDocument) *model.IngestDocument {
	if d == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if d.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *d.DeletedAt, Valid: true}
	} else if d.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if d.UpdatedAt != nil {
		updatedAt = *d.UpdatedAt
	}

	return &model.IngestDocument{
		Id:             d.Id,
		OrganizationId: d.OrganizationId,
		Name:           d.Name,
		SourceType:     d.SourceType,
		SourceUrl:      d.SourceUrl,
		Payload:        d.Payload,
		Status:         d.Status,
		Content:        d.Content,
		ErrorMessage:   d.ErrorMessage,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

func (m *KnowledgeMapper) DocumentsToEntities(docs []*model.IngestDocument) []*entity.IngestDocument {
	out := make([]*entity.IngestDocument, len(docs))
	for i, d := range docs {
		out[i] = m.DocumentToEntity(d)
	}
	return out
}

func (m *KnowledgeMapper) DocumentToResponse(d *entity.IngestDocument) *dto.IngestDocumentResponse {
	return &dto.IngestDocumentResponse{
		Id:           d.Id,
		Name:         d.Name,
		SourceType:   d.SourceType,
		SourceUrl:    d.SourceUrl,
		Status:       d.Status,
		Content:      d.Content,
		ErrorMessage: d.ErrorMessage,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (m *KnowledgeMapper) ChunkToEntity(c *model.KnowledgeEmbedding) *entity.KnowledgeChunk {
	if c == nil {
		return nil
	}
	var meta map[string]interface{}
	if len(c.Metadata) > 0 {
		_ = json.Unmarshal(c.Metadata, &meta)
	}
	return &entity.KnowledgeChunk{
		Id:             c.Id,
		OrganizationId: c.OrganizationId,
		DocumentId:     c.DocumentId,
		Source:         c.Source,
		Content:        c.Document,
		ContentType:    c.ContentType,
		ChunkIndex:     c.ChunkIndex,
		EmbeddingValue: c.EmbeddingValue.Slice(),
		Metadata:       meta,
		CreatedAt:      c.CreatedAt,
	}
}

func (m *KnowledgeMapper) ChunkToModel(c *entity.KnowledgeChunk) *model.KnowledgeEmbedding {
	if c == nil {
		return nil
	}
	var meta []byte
	if c.Metadata != nil {
		meta, _ = json.Marshal(c.Metadata)
	}
	return &model.KnowledgeEmbedding{
		Id:             c.Id,
		OrganizationId: c.OrganizationId,
		DocumentId:     c.DocumentId,
		Source:         c.Source,
		Document:       c.Content,
		ContentType:    c.ContentType,
		ChunkIndex:     c.ChunkIndex,
		EmbeddingValue: pgvector.NewVector(c.EmbeddingValue),
		Metadata:       meta,
		CreatedAt:      c.CreatedAt,
	}
}
