package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type IngestDocument struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrganizationId uuid.UUID      `gorm:"type:uuid;not null;index"`
	Name           string         `gorm:"type:varchar(500);not null"`
	SourceType     string         `gorm:"type:varchar(20);not null"`
	SourceUrl      *string        `gorm:"type:text"`
	Payload        []byte         `gorm:"type:bytea"`
	Status         string         `gorm:"type:varchar(20);not null;default:'Pending';index"`
	Content        *string        `gorm:"type:text"`
	ErrorMessage   *string        `gorm:"type:text"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (IngestDocument) TableName() string {
	return "ingest_documents"
}

type KnowledgeEmbedding struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrganizationId uuid.UUID       `gorm:"type:uuid;not null;index"`
	DocumentId     *uuid.UUID      `gorm:"type:uuid;index"`
	Source         string          `gorm:"type:text"`
	Document       string          `gorm:"type:text"`
	ContentType    string          `gorm:"type:varchar(50)"`
	ChunkIndex     int             `gorm:"default:0"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(768)"`
	Metadata       datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

func (KnowledgeEmbedding) TableName() string {
	return "knowledge_embeddings"
}
