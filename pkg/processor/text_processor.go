package processor

import (
	"context"
	"strings"
)

type TextProcessor struct{}

func NewTextProcessor() *TextProcessor {
	return &TextProcessor{}
}

func (p *TextProcessor) Process(ctx context.Context, in Input) (Result, error) {
	if strings.TrimSpace(in.Text) == "" {
		return Result{}, ErrEmptyInput
	}
	return Result{Text: in.Text, ContentType: ContentTypePlain}, nil
}
