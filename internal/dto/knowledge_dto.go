package dto

import (
	"time"

	"github.com/google/uuid"
)

type SubmitTextRequest struct {
	Name    string `json:"name" validate:"max=255"`
	Content string `json:"content" validate:"required"`
}

type SubmitUrlRequest struct {
	Name string `json:"name" validate:"max=255"`
	Url  string `json:"url" validate:"required,url"`
}

type SubmitDocumentResponse struct {
	DocumentId uuid.UUID `json:"document_id"`
	Status     string    `json:"status"`
}

type IngestDocumentResponse struct {
	Id           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	SourceType   string     `json:"source_type"`
	SourceUrl    *string    `json:"source_url,omitempty"`
	Status       string     `json:"status"`
	Content      *string    `json:"content,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

type ListDocumentsRequest struct {
	Status string `query:"status" validate:"omitempty,oneof=Pending Processing Completed Failed"`
}
