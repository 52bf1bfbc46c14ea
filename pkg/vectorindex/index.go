package vectorindex

import (
	"context"

	"github.com/google/uuid"
)

// Snippet is one search hit. Lower Distance is closer.
type Snippet struct {
	Content    string
	Source     string
	Distance   float64
	DocumentID *uuid.UUID
}

// Document is the normalized text of one knowledge source.
type Document struct {
	DocumentID  *uuid.UUID
	Source      string
	Text        string
	ContentType string
}

// VectorIndex stores embedded knowledge per collection (organization).
type VectorIndex interface {
	Search(ctx context.Context, collection uuid.UUID, query string, k int) ([]Snippet, error)
	Upsert(ctx context.Context, collection uuid.UUID, doc Document) error
	// Remove drops every chunk of a document.
	Remove(ctx context.Context, documentID uuid.UUID) error
}
