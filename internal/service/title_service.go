package service

import (
	"context"
	"fmt"
	"strings"

	"ai-support-be/internal/constant"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/pkg/chat/turn"
	"ai-support-be/pkg/llm"
)

const maxTitleRunes = 60

type titleService struct {
	provider llm.LLMProvider
	logger   logger.ILogger
}

// NewTitleService derives conversation titles. Without a provider, or when the
// provider fails, the first message is truncated instead.
func NewTitleService(provider llm.LLMProvider, log logger.ILogger) turn.TitleGenerator {
	return &titleService{provider: provider, logger: log}
}

func (s *titleService) Title(ctx context.Context, firstMessage string) (string, error) {
	if s.provider == nil {
		return FallbackTitle(firstMessage), nil
	}

	out, err := s.provider.Generate(ctx, fmt.Sprintf(constant.ConversationTitlePrompt, firstMessage),
		llm.WithTemperature(0.2), llm.WithMaxTokens(24))
	if err != nil {
		s.logger.Warn("TITLE", "Title generation failed, using fallback", map[string]interface{}{"error": err.Error()})
		return FallbackTitle(firstMessage), nil
	}
	title := cleanTitle(out)
	if title == "" {
		return FallbackTitle(firstMessage), nil
	}
	return title, nil
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'` ")
	return truncate(s, maxTitleRunes)
}

func FallbackTitle(firstMessage string) string {
	return truncate(strings.Join(strings.Fields(firstMessage), " "), maxTitleRunes)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}
