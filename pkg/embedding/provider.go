package embedding

import (
	"context"
	"fmt"
	"math"
)

const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// Dimensions of every vector stored in knowledge_embeddings
const Dimensions = 768

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error)
}

type EmbeddingResponseEmbedding struct {
	Values []float32 `json:"values"`
}

type EmbeddingResponse struct {
	Embedding EmbeddingResponseEmbedding `json:"embedding"`
}

// NewProvider picks the backend by name ("gemini" or "ollama").
func NewProvider(name, geminiKey, ollamaURL, ollamaModel string) (EmbeddingProvider, error) {
	switch name {
	case "gemini":
		return NewGeminiProvider(geminiKey), nil
	case "ollama", "":
		return NewOllamaProvider(ollamaURL, ollamaModel), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", name)
	}
}

// normalizeVector normalizes a vector to unit length (magnitude = 1).
// pgvector cosine distance assumes it.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
