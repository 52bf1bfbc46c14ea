package processor

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ai-support-be/pkg/fetcher"
)

// NoContentMarkdown is stored when a crawl returns no pages.
const NoContentMarkdown = "# No Content Found\n\nUnable to retrieve content from the provided URL."

type URLProcessor struct {
	fetcher     fetcher.WebContentFetcher
	keywords    []string
	maxSubpages int
	now         func() time.Time
}

func NewURLProcessor(f fetcher.WebContentFetcher, keywords []string, maxSubpages int) *URLProcessor {
	if maxSubpages > fetcher.MaxSubpages || maxSubpages < 0 {
		maxSubpages = fetcher.MaxSubpages
	}
	return &URLProcessor{
		fetcher:     f,
		keywords:    keywords,
		maxSubpages: maxSubpages,
		now:         time.Now,
	}
}

// WithClock replaces the timestamp source used in the footer.
func (p *URLProcessor) WithClock(now func() time.Time) *URLProcessor {
	p.now = now
	return p
}

func (p *URLProcessor) Process(ctx context.Context, in Input) (Result, error) {
	raw := strings.TrimSpace(in.URL)
	if raw == "" {
		return Result{}, ErrEmptyInput
	}

	pages, err := p.fetcher.FetchWithSubpages(ctx, raw, p.keywords, p.maxSubpages)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", raw, err)
	}
	if len(pages) == 0 {
		return Result{Text: NoContentMarkdown, ContentType: ContentTypeMarkdown}, nil
	}

	return Result{Text: renderKnowledgeBase(raw, pages, p.now()), ContentType: ContentTypeMarkdown}, nil
}

func renderKnowledgeBase(source string, pages []fetcher.Page, generated time.Time) string {
	host := source
	if u, err := url.Parse(source); err == nil && u.Host != "" {
		host = u.Host
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Knowledge Base: %s\n\n", host)
	fmt.Fprintf(&b, "Source: %s\n\n", source)
	for _, page := range pages {
		fmt.Fprintf(&b, "## %s\n\n", page.Title)
		fmt.Fprintf(&b, "Source: %s\n\n", page.URL)
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(page.Summary))
	}
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "*Pages processed: %d*\n", len(pages))
	fmt.Fprintf(&b, "*Generated: %s*\n", generated.UTC().Format(time.RFC3339))
	return b.String()
}
