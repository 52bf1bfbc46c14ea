// Package processor turns raw ingest input into indexable text. Every
// processor is a pure function of its input plus its injected collaborators.
package processor

import (
	"context"
	"errors"
	"fmt"
)

const (
	SourceTypeUrl      = "Url"
	SourceTypeDocument = "Document"
	SourceTypeText     = "Text"

	ContentTypeMarkdown = "text/markdown"
	ContentTypePlain    = "text/plain"
)

var (
	ErrUnsupportedSource   = errors.New("unsupported source type")
	ErrUnsupportedDocument = errors.New("unsupported document type")
	ErrEmptyInput          = errors.New("empty input")
)

// Input is the payload of one ingest event. Exactly one of URL, Data or Text is used,
// depending on SourceType.
type Input struct {
	SourceType string
	URL        string
	Data       []byte
	Filename   string
	Text       string
}

type Result struct {
	Text        string
	ContentType string
}

type Processor interface {
	Process(ctx context.Context, in Input) (Result, error)
}

// Registry dispatches to the processor registered for the input's source type.
type Registry struct {
	processors map[string]Processor
}

func NewRegistry() *Registry {
	return &Registry{processors: make(map[string]Processor)}
}

func (r *Registry) Register(sourceType string, p Processor) *Registry {
	r.processors[sourceType] = p
	return r
}

func (r *Registry) Process(ctx context.Context, in Input) (Result, error) {
	p, ok := r.processors[in.SourceType]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedSource, in.SourceType)
	}
	return p.Process(ctx, in)
}
