package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Keys     APIKeys
	Ai       AIConfig
	Chat     ChatConfig
	Ingest   IngestConfig
	Otel     OtelConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	StreamLogFilePath  string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type APIKeys struct {
	Exa          string
	OpenAI       string
	GoogleGemini string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini" or "ollama"
	OllamaBaseURL     string
	OllamaModel       string // embedding model
	LLMBaseURL        string // OpenAI-compatible endpoint, e.g. http://localhost:11434/v1
	LLMModel          string
	TitleProvider     string // "ollama" or "openai"
	TitleModel        string // small model used for conversation titles
}

type ChatConfig struct {
	SessionTTL         time.Duration
	MaxSessions        int
	HistoryLimit       int
	GateWait           time.Duration
	ToolTimeout        time.Duration
	MaxToolRounds      int
	BackgroundPoolSize int
	BackgroundTimeout  time.Duration
	SearchTopK         int
	SystemPrompt       string
}

type IngestConfig struct {
	QueueBackend     string // "memory" or "nats"
	MaxSubpages      int
	SubpageKeywords  []string
	ProcessorTimeout time.Duration
}

type OtelConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			StreamLogFilePath:  getEnv("STREAM_LOG_FILE_PATH", "logs/stream.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JwtSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Support Desk"),
		},
		Keys: APIKeys{
			Exa:          getEnv("EXA_API_KEY", ""),
			OpenAI:       getEnv("OPENAI_API_KEY", "ollama"),
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", "http://localhost:11434/v1"),
			LLMModel:          getEnv("LLM_MODEL", "qwen2.5"),
			TitleProvider:     getEnv("LLM_TITLE_PROVIDER", "ollama"),
			TitleModel:        getEnv("LLM_TITLE_MODEL", "llama3"),
		},
		Chat: ChatConfig{
			SessionTTL:         getEnvAsDuration("CHAT_SESSION_TTL", 30*time.Minute),
			MaxSessions:        getEnvAsInt("CHAT_MAX_SESSIONS", 1000),
			HistoryLimit:       getEnvAsInt("CHAT_HISTORY_LIMIT", 100),
			GateWait:           getEnvAsDuration("CHAT_GATE_WAIT", 2*time.Minute),
			ToolTimeout:        getEnvAsDuration("CHAT_TOOL_TIMEOUT", 20*time.Second),
			MaxToolRounds:      getEnvAsInt("CHAT_MAX_TOOL_ROUNDS", 5),
			BackgroundPoolSize: getEnvAsInt("CHAT_BACKGROUND_POOL_SIZE", 16),
			BackgroundTimeout:  getEnvAsDuration("CHAT_BACKGROUND_TIMEOUT", 30*time.Second),
			SearchTopK:         getEnvAsInt("CHAT_SEARCH_TOP_K", 5),
			SystemPrompt:       getEnv("CHAT_SYSTEM_PROMPT", ""),
		},
		Ingest: IngestConfig{
			QueueBackend:     getEnv("INGEST_QUEUE_BACKEND", "memory"),
			MaxSubpages:      getEnvAsInt("INGEST_MAX_SUBPAGES", 30),
			SubpageKeywords:  getEnvAsList("INGEST_SUBPAGE_KEYWORDS", []string{"faq", "help", "support", "pricing", "docs", "about"}),
			ProcessorTimeout: getEnvAsDuration("INGEST_PROCESSOR_TIMEOUT", 5*time.Minute),
		},
		Otel: OtelConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ai-support-backend"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
