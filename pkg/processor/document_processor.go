package processor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

type DocumentProcessor struct{}

func NewDocumentProcessor() *DocumentProcessor {
	return &DocumentProcessor{}
}

func (p *DocumentProcessor) Process(ctx context.Context, in Input) (Result, error) {
	if len(in.Data) == 0 {
		return Result{}, ErrEmptyInput
	}

	mt := mimetype.Detect(in.Data)
	switch {
	case mt.Is("application/pdf"):
		pages, err := extractPDFPages(in.Data)
		if err != nil {
			return Result{}, err
		}
		return Result{Text: formatPages(pages), ContentType: ContentTypePlain}, nil
	case isText(mt):
		contentType := ContentTypePlain
		if strings.HasSuffix(strings.ToLower(in.Filename), ".md") {
			contentType = ContentTypeMarkdown
		}
		return Result{Text: string(in.Data), ContentType: contentType}, nil
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedDocument, mt.String())
	}
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	return false
}

// extractPDFPages returns the plain text of every page in reading order.
// Index i holds page i+1; pages without text are empty strings.
func extractPDFPages(data []byte) (pages []string, err error) {
	// The pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	pages = make([]string, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		pages[i-1] = text
	}
	return pages, nil
}

// formatPages renders "--- Page N ---" blocks, skipping empty pages but
// keeping the original page numbers.
func formatPages(pages []string) string {
	var blocks []string
	for i, text := range pages {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("--- Page %d ---\n%s", i+1, text))
	}
	return strings.Join(blocks, "\n\n")
}
