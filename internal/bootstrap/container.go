package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"ai-support-be/internal/config"
	"ai-support-be/internal/controller"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/pkg/mailer"
	"ai-support-be/internal/pkg/serverutils"
	"ai-support-be/internal/repository/memory"
	"ai-support-be/internal/repository/unitofwork"
	"ai-support-be/internal/service"
	"ai-support-be/internal/websocket"
	"ai-support-be/pkg/broker"
	"ai-support-be/pkg/chat/tools"
	"ai-support-be/pkg/chat/turn"
	"ai-support-be/pkg/embedding"
	"ai-support-be/pkg/events"
	"ai-support-be/pkg/fetcher"
	"ai-support-be/pkg/ingest"
	"ai-support-be/pkg/llm/factory"
	pktNats "ai-support-be/pkg/nats"
	"ai-support-be/pkg/processor"
	"ai-support-be/pkg/queue"
	queueMemory "ai-support-be/pkg/queue/memory"
	"ai-support-be/pkg/tasks"
	"ai-support-be/pkg/vectorindex"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController      controller.IChatController
	KnowledgeController controller.IKnowledgeController
	Auth                fiber.Handler

	// Exposed for cmd/kbctl
	IngestService ingest.IService
	VectorIndex   vectorindex.VectorIndex

	// Background loops, started by Start
	WebSocketHub *websocket.Hub
	IngestWorker *ingest.Worker

	Logger logger.ILogger

	supervisor *tasks.Supervisor
	closers    []func() error
	wg         sync.WaitGroup
}

func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{Logger: sysLogger}

	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)

	embeddingProvider, err := embedding.NewProvider(cfg.Ai.EmbeddingProvider, cfg.Keys.GoogleGemini, cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	if err != nil {
		return nil, err
	}
	sysLogger.Info("BOOTSTRAP", "Embedding provider ready", map[string]interface{}{"provider": cfg.Ai.EmbeddingProvider})

	index := vectorindex.NewPgVectorIndex(uowFactory, embeddingProvider, sysLogger)
	c.VectorIndex = index

	// 2. Event Bus
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "NATS publisher unavailable, domain events disabled", map[string]interface{}{"error": err.Error()})
		} else {
			publisher = natsPub
			c.closers = append(c.closers, func() error { natsPub.Close(); return nil })
		}
	}

	statusBroker := broker.NewStatusBroker(sysLogger)
	c.closers = append(c.closers, statusBroker.Close)

	// 3. Ingest Pipeline
	ingestQueue, err := newIngestQueue(cfg, sysLogger)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, ingestQueue.Close)

	registry := processor.NewRegistry().
		Register(processor.SourceTypeUrl, processor.NewURLProcessor(fetcher.NewExaFetcher(cfg.Keys.Exa), cfg.Ingest.SubpageKeywords, cfg.Ingest.MaxSubpages)).
		Register(processor.SourceTypeDocument, processor.NewDocumentProcessor()).
		Register(processor.SourceTypeText, processor.NewTextProcessor())

	documents := ingest.NewDocumentStore(uowFactory)
	notifier := ingest.NewNotifier(statusBroker, publisher, sysLogger)
	c.IngestService = ingest.NewService(ingestQueue, documents, index, statusBroker, notifier, sysLogger)
	c.IngestWorker = ingest.NewWorker(ingestQueue, documents, registry, index, notifier, sysLogger, cfg.Ingest.ProcessorTimeout)

	// 4. Live Conversation Engine
	sessions, err := memory.NewSessionStore(cfg.Chat.SessionTTL, cfg.Chat.MaxSessions, sysLogger)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	supervisor, err := tasks.NewSupervisor(cfg.Chat.BackgroundPoolSize, cfg.Chat.BackgroundTimeout, sysLogger)
	if err != nil {
		return nil, err
	}
	c.supervisor = supervisor

	titleProvider, err := factory.NewLLMProvider(cfg.Ai.TitleProvider, cfg.Ai.TitleModel, titleBaseURL(cfg), cfg.Keys.OpenAI)
	if err != nil {
		return nil, err
	}
	completion := factory.NewCompletionStream(cfg.Ai.LLMModel, cfg.Ai.LLMBaseURL, cfg.Keys.OpenAI)
	sysLogger.Info("BOOTSTRAP", "LLM providers ready", map[string]interface{}{
		"model":          cfg.Ai.LLMModel,
		"title_provider": cfg.Ai.TitleProvider,
		"title_model":    cfg.Ai.TitleModel,
	})

	var emailService mailer.IEmailService = mailer.NopEmailService{}
	if cfg.SMTP.Host != "" {
		emailService = mailer.NewEmailService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Email, cfg.SMTP.Password, cfg.SMTP.Email, cfg.SMTP.SenderName, sysLogger)
	}

	tickets := tools.NewTicketStore(uowFactory, emailService, publisher, supervisor, sysLogger)
	dispatcher := tools.NewSupportDispatcher(index, tickets, cfg.Chat.SearchTopK, cfg.Chat.ToolTimeout, sysLogger)

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.StreamLogFilePath)
	c.WebSocketHub = websocket.NewHub(newRedis(cfg, sysLogger), wsLogger)

	coordinator := turn.NewCoordinator(
		completion,
		dispatcher,
		c.WebSocketHub,
		service.NewConversationStore(uowFactory),
		service.NewTitleService(titleProvider, sysLogger),
		supervisor,
		turn.Config{
			HistoryLimit:  cfg.Chat.HistoryLimit,
			MaxToolRounds: cfg.Chat.MaxToolRounds,
			GateWait:      cfg.Chat.GateWait,
		},
		sysLogger,
	)

	chatService := service.NewChatService(uowFactory, sessions, coordinator, publisher, cfg.Chat.SystemPrompt, cfg.Chat.HistoryLimit, sysLogger)

	// 5. Controllers
	c.Auth = serverutils.JwtMiddleware(cfg.App.JwtSecret)
	c.ChatController = controller.NewChatController(chatService, c.WebSocketHub, wsLogger)
	c.KnowledgeController = controller.NewKnowledgeController(c.IngestService, sysLogger)

	return c, nil
}

func newIngestQueue(cfg *config.Config, log logger.ILogger) (queue.Queue[ingest.IngestEvent], error) {
	if cfg.Ingest.QueueBackend != "nats" {
		return queueMemory.NewFIFO[ingest.IngestEvent](), nil
	}
	if cfg.App.NatsURL == "" {
		return nil, fmt.Errorf("INGEST_QUEUE_BACKEND=nats requires NATS_URL")
	}
	return pktNats.NewWorkQueue[ingest.IngestEvent](context.Background(), cfg.App.NatsURL, pktNats.WorkQueueConfig{
		Stream:  "INGEST",
		Subject: "ingest.events",
		Durable: "ingest-worker",
	}, log)
}

// newRedis returns nil when no Redis is configured; the hub then stays local to this instance.
func newRedis(cfg *config.Config, log logger.ILogger) *redis.Client {
	if cfg.App.RedisURL == "" {
		return nil
	}
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Warn("BOOTSTRAP", "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn("BOOTSTRAP", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}
	return rdb
}

func titleBaseURL(cfg *config.Config) string {
	if cfg.Ai.TitleProvider == "ollama" {
		return cfg.Ai.OllamaBaseURL
	}
	return cfg.Ai.LLMBaseURL
}

// Start runs the hub relay and the ingest worker until ctx is done.
func (c *Container) Start(ctx context.Context) {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.WebSocketHub.Run(ctx)
	}()
	go func() {
		defer c.wg.Done()
		if err := c.IngestWorker.Run(ctx); err != nil {
			c.Logger.Error("BOOTSTRAP", "Ingest worker exited", map[string]interface{}{"error": err.Error()})
		}
	}()
}

// Close drains background tasks and releases infrastructure. Cancel the Start
// context first; the worker's final status write still needs the broker and
// the publisher, so those close last.
func (c *Container) Close() {
	c.wg.Wait()
	if c.supervisor != nil {
		c.supervisor.Wait()
		c.supervisor.Release()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.Logger.Warn("BOOTSTRAP", "Close failed", map[string]interface{}{"error": err.Error()})
		}
	}
}
