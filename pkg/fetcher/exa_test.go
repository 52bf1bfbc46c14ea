package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExaFetcher_FlattensSubpages(t *testing.T) {
	var got exaContentsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contents", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(exaContentsResponse{Results: []exaContentsEntry{{
			URL:     "https://acme.test",
			Title:   "Acme",
			Summary: "Acme sells anvils.",
			Subpages: []exaContentsEntry{
				{URL: "https://acme.test/faq", Title: "FAQ", Summary: "Shipping takes 3 days."},
				{URL: "https://acme.test/empty", Title: "Empty"},
				{URL: "https://acme.test/faq", Title: "FAQ again", Summary: "dup"},
			},
		}}})
	}))
	defer server.Close()

	f := NewExaFetcher("test-key", WithBaseURL(server.URL))
	pages, err := f.FetchWithSubpages(context.Background(), "https://acme.test", []string{"faq"}, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://acme.test"}, got.URLs)
	assert.Equal(t, 10, got.Subpages)
	assert.Equal(t, []string{"faq"}, got.SubpageTarget)

	require.Len(t, pages, 2)
	assert.Equal(t, Page{Title: "Acme", URL: "https://acme.test", Summary: "Acme sells anvils."}, pages[0])
	assert.Equal(t, "FAQ", pages[1].Title)
}

func TestExaFetcher_DecodesWithoutJSONContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(`{"results":[{"url":"https://acme.test","title":"Acme","summary":"Anvils."}]}`))
	}))
	defer server.Close()

	pages, err := NewExaFetcher("k", WithBaseURL(server.URL)).FetchWithSubpages(context.Background(), "https://acme.test", nil, 0)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Anvils.", pages[0].Summary)
}

func TestExaFetcher_CapsSubpages(t *testing.T) {
	var got exaContentsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(exaContentsResponse{})
	}))
	defer server.Close()

	f := NewExaFetcher("k", WithBaseURL(server.URL))
	pages, err := f.FetchWithSubpages(context.Background(), "https://x.test", nil, 100)
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.Equal(t, MaxSubpages, got.Subpages)
}

func TestExaFetcher_SummaryFallsBackToText(t *testing.T) {
	p, ok := toPage(exaContentsEntry{URL: "u", Text: strings.Repeat("a", summaryFallback+10)})
	require.True(t, ok)
	assert.Equal(t, "u", p.Title)
	assert.True(t, strings.HasSuffix(p.Summary, "..."))
}

func TestExaFetcher_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	_, err := NewExaFetcher("k", WithBaseURL(server.URL)).FetchWithSubpages(context.Background(), "https://x.test", nil, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestExaFetcher_MissingKey(t *testing.T) {
	_, err := NewExaFetcher("").FetchWithSubpages(context.Background(), "https://x.test", nil, 1)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
