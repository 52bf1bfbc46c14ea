package ingest

import (
	"ai-support-be/pkg/processor"

	"github.com/google/uuid"
)

// IngestEvent is the queue payload for one submitted document.
type IngestEvent struct {
	DocumentID     uuid.UUID `json:"document_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	SourceType     string    `json:"source_type"`
	URL            string    `json:"url,omitempty"`
	Data           []byte    `json:"data,omitempty"`
	Filename       string    `json:"filename,omitempty"`
	Text           string    `json:"text,omitempty"`
}

func (e IngestEvent) input() processor.Input {
	return processor.Input{
		SourceType: e.SourceType,
		URL:        e.URL,
		Data:       e.Data,
		Filename:   e.Filename,
		Text:       e.Text,
	}
}

// source names the document in search results.
func (e IngestEvent) source() string {
	if e.URL != "" {
		return e.URL
	}
	if e.Filename != "" {
		return e.Filename
	}
	return e.Name
}
