package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CHAT_SESSION_TTL", "")
	t.Setenv("INGEST_MAX_SUBPAGES", "")

	cfg := Load()
	assert.Equal(t, 30*time.Minute, cfg.Chat.SessionTTL)
	assert.Equal(t, 1000, cfg.Chat.MaxSessions)
	assert.Equal(t, 100, cfg.Chat.HistoryLimit)
	assert.Equal(t, 30, cfg.Ingest.MaxSubpages)
	assert.Equal(t, "memory", cfg.Ingest.QueueBackend)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CHAT_SESSION_TTL", "90s")
	t.Setenv("CHAT_MAX_SESSIONS", "5")
	t.Setenv("INGEST_SUBPAGE_KEYWORDS", "faq, ,pricing")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("GO_ENV", "production")

	cfg := Load()
	assert.Equal(t, 90*time.Second, cfg.Chat.SessionTTL)
	assert.Equal(t, 5, cfg.Chat.MaxSessions)
	assert.Equal(t, []string{"faq", "pricing"}, cfg.Ingest.SubpageKeywords)
	assert.True(t, cfg.Otel.Enabled)
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "ten")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")

	assert.Equal(t, 7, getEnvAsInt("X_INT", 7))
	assert.Equal(t, time.Second, getEnvAsDuration("X_DUR", time.Second))
	assert.True(t, getEnvAsBool("X_BOOL", true))
}
