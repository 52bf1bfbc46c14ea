package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const geminiModel = "text-embedding-004"

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"task_type,omitempty"`
}

type GeminiProvider struct {
	client *resty.Client
}

func NewGeminiProvider(apiKey string) EmbeddingProvider {
	return &GeminiProvider{
		client: resty.New().
			SetBaseURL("https://generativelanguage.googleapis.com/v1").
			SetTimeout(30*time.Second).
			SetHeader("x-goog-api-key", apiKey).
			SetHeader("Content-Type", "application/json"),
	}
}

func (p *GeminiProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	body := geminiRequest{
		Model:    geminiModel,
		Content:  geminiContent{Parts: []geminiPart{{Text: text}}},
		TaskType: taskType,
	}

	var out EmbeddingResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(fmt.Sprintf("/models/%s:embedContent", geminiModel))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("error from gemini response, code %d, body %s", resp.StatusCode(), resp.String())
	}

	return &out, nil
}
