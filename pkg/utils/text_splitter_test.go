package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		chunkSize int
		overlap   int
		want      []string
	}{
		{"short text is one chunk", "hello", 10, 2, []string{"hello"}},
		{"exact multiple", "abcdef", 3, 0, []string{"abc", "def"}},
		{"with overlap", "abcdefg", 4, 2, []string{"abcd", "cdef", "efg"}},
		{"overlap larger than chunk", "abcdef", 3, 5, []string{"abc", "def"}},
		{"multibyte runes", "ééééé", 2, 0, []string{"éé", "éé", "é"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitText(tt.text, tt.chunkSize, tt.overlap))
		})
	}
}

func TestSplitMarkdown_KeepsAllContent(t *testing.T) {
	doc := "# Title\n\nIntro paragraph.\n\n## Section A\n\n" + strings.Repeat("alpha ", 60) +
		"\n\n## Section B\n\n" + strings.Repeat("beta ", 60)

	chunks := SplitMarkdown(doc, 200, 0)
	require.NotEmpty(t, chunks)

	joined := strings.Join(chunks, "\n")
	assert.Contains(t, joined, "Section A")
	assert.Contains(t, joined, "Section B")
	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}
