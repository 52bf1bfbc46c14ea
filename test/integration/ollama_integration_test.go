package integration

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"ai-support-be/pkg/llm"
	"ai-support-be/pkg/llm/ollama"
	"ai-support-be/pkg/llm/openai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ollamaBaseURL = "http://localhost:11434"
	ollamaModel   = "qwen2.5"
)

func requireOllama(t *testing.T) {
	t.Helper()
	if os.Getenv("OLLAMA_INTEGRATION") == "" {
		t.Skip("Skipping Ollama test: OLLAMA_INTEGRATION not set")
	}
}

func TestOllamaTitleProvider(t *testing.T) {
	requireOllama(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	p := ollama.NewOllamaProvider(ollamaBaseURL, ollamaModel)
	out, err := p.Generate(ctx, "Reply with the single word: pong", llm.WithTemperature(0), llm.WithMaxTokens(8))
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
}

func TestOpenAICompatibleStream(t *testing.T) {
	requireOllama(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	p := openai.NewProvider(ollamaBaseURL+"/v1", "ollama", ollamaModel)
	stream, err := p.CompletionStream(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are terse."},
		{Role: llm.RoleUser, Content: "Count from one to three."},
	}, nil, llm.WithTemperature(0))
	require.NoError(t, err)
	defer stream.Close()

	var tokens int
	var sb strings.Builder
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if ev.Token != "" {
			tokens++
			sb.WriteString(ev.Token)
		}
	}
	assert.Greater(t, tokens, 1)
	assert.NotEmpty(t, sb.String())
}
