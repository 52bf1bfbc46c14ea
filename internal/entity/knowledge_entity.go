package entity

import (
	"time"

	"github.com/google/uuid"
)

type IngestDocument struct {
	Id             uuid.UUID
	OrganizationId uuid.UUID
	Name           string
	SourceType     string
	SourceUrl      *string
	Payload        []byte // original upload or text, kept for resubmission
	Status         string
	Content        *string
	ErrorMessage   *string
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}

type KnowledgeChunk struct {
	Id             uuid.UUID
	OrganizationId uuid.UUID // collection
	DocumentId     *uuid.UUID
	Source         string
	Content        string
	ContentType    string
	ChunkIndex     int
	EmbeddingValue []float32
	Metadata       map[string]interface{}
	CreatedAt      time.Time
}
