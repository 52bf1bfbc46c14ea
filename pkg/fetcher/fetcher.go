package fetcher

import "context"

// Page is one crawled page: the root URL or one of its subpages.
type Page struct {
	Title   string
	URL     string
	Summary string
}

// WebContentFetcher crawls a URL and up to maxSubpages related pages.
type WebContentFetcher interface {
	FetchWithSubpages(ctx context.Context, url string, keywords []string, maxSubpages int) ([]Page, error)
}
