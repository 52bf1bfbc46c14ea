package factory

import (
	"fmt"

	"ai-support-be/pkg/llm"
	"ai-support-be/pkg/llm/ollama"
	"ai-support-be/pkg/llm/openai"
)

// NewLLMProvider builds the one-shot provider used for auxiliary prompts.
func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		return openai.NewProvider(baseURL, apiKey, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}

// NewCompletionStream builds the streaming provider for live turns.
func NewCompletionStream(modelName, baseURL, apiKey string) llm.CompletionStream {
	return openai.NewProvider(baseURL, apiKey, modelName)
}
