package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"ai-support-be/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

// Provider talks to any OpenAI-compatible endpoint (OpenAI, Ollama /v1, vLLM).
type Provider struct {
	client    *goopenai.Client
	ModelName string
}

var (
	_ llm.LLMProvider      = &Provider{}
	_ llm.CompletionStream = &Provider{}
)

func NewProvider(baseURL, apiKey, modelName string) *Provider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Provider{
		client:    goopenai.NewClientWithConfig(cfg),
		ModelName: modelName,
	}
}

func (p *Provider) request(history []llm.Message, opts []llm.Option) goopenai.ChatCompletionRequest {
	options := llm.ApplyOptions(llm.Options{Temperature: 0.7, Model: p.ModelName}, opts...)
	req := goopenai.ChatCompletionRequest{
		Model:       options.Model,
		Messages:    toOpenAIMessages(history),
		Temperature: float32(options.Temperature),
	}
	if options.MaxTokens > 0 {
		req.MaxTokens = options.MaxTokens
	}
	return req
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(history, opts))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

func (p *Provider) CompletionStream(ctx context.Context, history []llm.Message, tools []llm.ToolDefinition, opts ...llm.Option) (llm.Stream, error) {
	req := p.request(history, opts)
	req.Stream = true
	for _, t := range tools {
		req.Tools = append(req.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	s, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}
	return &stream{inner: s, calls: make(map[int]*llm.ToolCall)}, nil
}

type stream struct {
	inner   *goopenai.ChatCompletionStream
	calls   map[int]*llm.ToolCall
	pending []string
	flushed bool
}

func (s *stream) Recv() (llm.StreamEvent, error) {
	for {
		if len(s.pending) > 0 {
			tok := s.pending[0]
			s.pending = s.pending[1:]
			return llm.StreamEvent{Token: tok}, nil
		}
		if s.flushed {
			return llm.StreamEvent{}, io.EOF
		}

		chunk, err := s.inner.Recv()
		if errors.Is(err, io.EOF) {
			s.flushed = true
			if calls := s.assembled(); len(calls) > 0 {
				return llm.StreamEvent{ToolCalls: calls}, nil
			}
			return llm.StreamEvent{}, io.EOF
		}
		if err != nil {
			return llm.StreamEvent{}, err
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				s.pending = append(s.pending, choice.Delta.Content)
			}
			for i := range choice.Delta.ToolCalls {
				s.accumulate(&choice.Delta.ToolCalls[i])
			}
		}
	}
}

// accumulate merges a streamed tool call fragment by its index.
func (s *stream) accumulate(tc *goopenai.ToolCall) {
	index := 0
	if tc.Index != nil {
		index = *tc.Index
	}
	acc, ok := s.calls[index]
	if !ok {
		acc = &llm.ToolCall{}
		s.calls[index] = acc
	}
	if tc.ID != "" {
		acc.ID = tc.ID
	}
	if tc.Function.Name != "" {
		acc.Name = tc.Function.Name
	}
	acc.Arguments += tc.Function.Arguments
}

func (s *stream) assembled() []llm.ToolCall {
	indexes := make([]int, 0, len(s.calls))
	for i := range s.calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]llm.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		call := *s.calls[i]
		if call.Name == "" {
			continue
		}
		if call.ID == "" {
			call.ID = fmt.Sprintf("call_%d", i)
		}
		out = append(out, call)
	}
	return out
}

func (s *stream) Close() error {
	return s.inner.Close()
}

func toOpenAIMessages(history []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		msg := goopenai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}
