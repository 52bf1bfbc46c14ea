package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultExaBaseURL = "https://api.exa.ai"
	MaxSubpages       = 30
	summaryFallback   = 1200 // characters of page text used when Exa returns no summary
)

var ErrMissingAPIKey = errors.New("exa api key is not configured")

type ExaFetcher struct {
	apiKey string
	client *resty.Client
}

type ExaOption func(*ExaFetcher)

func WithBaseURL(url string) ExaOption {
	return func(f *ExaFetcher) { f.client.SetBaseURL(url) }
}

func NewExaFetcher(apiKey string, opts ...ExaOption) *ExaFetcher {
	f := &ExaFetcher{
		apiKey: apiKey,
		client: resty.New().
			SetBaseURL(defaultExaBaseURL).
			SetTimeout(90*time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("x-api-key", apiKey),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ WebContentFetcher = (*ExaFetcher)(nil)

type exaSummaryOpt struct {
	Query string `json:"query,omitempty"`
}

type exaTextOpt struct {
	MaxCharacters int `json:"maxCharacters,omitempty"`
}

type exaContentsRequest struct {
	URLs          []string       `json:"urls"`
	Text          *exaTextOpt    `json:"text,omitempty"`
	Summary       *exaSummaryOpt `json:"summary,omitempty"`
	Subpages      int            `json:"subpages,omitempty"`
	SubpageTarget []string       `json:"subpageTarget,omitempty"`
}

type exaContentsEntry struct {
	URL      string             `json:"url"`
	Title    string             `json:"title"`
	Text     string             `json:"text"`
	Summary  string             `json:"summary"`
	Subpages []exaContentsEntry `json:"subpages,omitempty"`
}

type exaContentsResponse struct {
	Results []exaContentsEntry `json:"results"`
}

func (f *ExaFetcher) FetchWithSubpages(ctx context.Context, url string, keywords []string, maxSubpages int) ([]Page, error) {
	if f.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if maxSubpages < 0 {
		maxSubpages = 0
	}
	if maxSubpages > MaxSubpages {
		maxSubpages = MaxSubpages
	}

	body := exaContentsRequest{
		URLs:          []string{url},
		Text:          &exaTextOpt{MaxCharacters: 10000},
		Summary:       &exaSummaryOpt{Query: "Summarize the facts a customer support agent needs from this page."},
		Subpages:      maxSubpages,
		SubpageTarget: keywords,
	}

	var out exaContentsResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		ForceContentType("application/json").
		Post("/contents")
	if err != nil {
		return nil, fmt.Errorf("exa: request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("exa: API error (status %d): %s", resp.StatusCode(), resp.String())
	}

	var pages []Page
	seen := make(map[string]bool)
	var walk func(entries []exaContentsEntry)
	walk = func(entries []exaContentsEntry) {
		for _, e := range entries {
			if e.URL != "" && !seen[e.URL] {
				seen[e.URL] = true
				if p, ok := toPage(e); ok {
					pages = append(pages, p)
				}
			}
			walk(e.Subpages)
		}
	}
	walk(out.Results)

	// Root page plus at most maxSubpages
	if len(pages) > maxSubpages+1 {
		pages = pages[:maxSubpages+1]
	}
	return pages, nil
}

func toPage(e exaContentsEntry) (Page, bool) {
	summary := strings.TrimSpace(e.Summary)
	if summary == "" {
		summary = strings.TrimSpace(e.Text)
		if r := []rune(summary); len(r) > summaryFallback {
			summary = string(r[:summaryFallback]) + "..."
		}
	}
	if summary == "" {
		return Page{}, false
	}
	title := strings.TrimSpace(e.Title)
	if title == "" {
		title = e.URL
	}
	return Page{Title: title, URL: e.URL, Summary: summary}, true
}
