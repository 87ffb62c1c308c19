package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"rag-chatbot-be/internal/config"
	"rag-chatbot-be/internal/controller"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/internal/service"
	"rag-chatbot-be/pkg/cache"
	"rag-chatbot-be/pkg/chunker"
	"rag-chatbot-be/pkg/embedding"
	embeddingFactory "rag-chatbot-be/pkg/embedding/factory"
	"rag-chatbot-be/pkg/events"
	"rag-chatbot-be/pkg/llm"
	llmFactory "rag-chatbot-be/pkg/llm/factory"
	"rag-chatbot-be/pkg/loader"
	"rag-chatbot-be/pkg/rag"
	"rag-chatbot-be/pkg/storage"
	"rag-chatbot-be/pkg/vectorindex"

	pktNats "rag-chatbot-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	cleanupRetryDelay = 2 * time.Second
	SweepInterval     = 10 * time.Minute
)

type Container struct {
	// Controllers
	AuthController     controller.IAuthController
	DocumentController controller.IDocumentController
	QueryController    controller.IQueryController
	AdminController    controller.IAdminController

	// Pipelines, exposed for the CLI
	Ingestor *rag.Ingestor
	Purger   *rag.Purger

	// Background Services (Exposed for main.go to run)
	CleanupConsumer service.IIndexCleanupConsumer
	EventLog        *service.EventLogService

	Logger *logger.ZapLogger

	closers []func()
}

func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config) (*Container, error) {
	c := &Container{}

	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	c.Logger = sysLogger
	c.closers = append(c.closers, func() { _ = sysLogger.Sync() })

	// 2. Event Buses
	// Watermill carries in-process work (index cleanup); NATS carries domain events.
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	var eventPublisher events.Publisher = events.NopPublisher{}
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			eventPublisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}

		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		} else {
			c.EventLog = service.NewEventLogService(natsSub, sysLogger)
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	// 3. Query embedding cache
	queryCache := c.newQueryCache(ctx, cfg)

	// 4. AI providers
	embeddingProvider, err := embeddingFactory.NewEmbeddingProvider(ctx, embeddingFactory.Config{
		Provider:            cfg.Ai.EmbeddingProvider,
		LocalModel:          cfg.Ai.LocalEmbeddingModel,
		ModelDir:            cfg.Ai.ModelDir,
		OllamaBaseURL:       cfg.Ai.OllamaBaseURL,
		OllamaModel:         cfg.Ai.OllamaEmbeddingModel,
		GeminiAPIKey:        cfg.Ai.GeminiAPIKey,
		GeminiModel:         cfg.Ai.GeminiEmbeddingModel,
		GeminiRatePerSecond: cfg.Ai.GeminiRatePerSecond,
		JinaAPIKey:          cfg.Ai.JinaAPIKey,
		JinaModel:           cfg.Ai.JinaEmbeddingModel,
		MaxTries:            uint(max(cfg.Ai.EmbeddingMaxTries, 1)),
		QueryCache:          queryCache,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	log.Printf("[INFO] Using Embedding Provider: %s", embeddingProvider.Name())

	chatModel := newChatModel(ctx, cfg)

	// 5. Vector index, one handle per process
	index, err := newVectorIndex(db, embeddingProvider, cfg)
	if err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}

	// 6. Pipelines
	splitter := chunker.New(
		chunker.WithChunkSize(cfg.Rag.ChunkSize),
		chunker.WithOverlap(cfg.Rag.ChunkOverlap),
	)
	if err := splitter.Validate(); err != nil {
		return nil, err
	}
	fileStorage := storage.NewLocalStorage(cfg.Storage.RootDir)
	registry := service.NewDocumentRegistry(uowFactory)

	c.Ingestor = rag.NewIngestor(fileStorage, registry, loader.New(), splitter, index, eventPublisher, sysLogger, rag.IngestorConfig{
		MaxFileBytes:    cfg.Storage.MaxUploadBytes,
		MaxFiles:        cfg.Storage.MaxFiles,
		UpstreamTimeout: cfg.Rag.UpstreamTimeout,
	})

	var active rag.ActiveDocuments
	if cfg.Rag.FilterInactive {
		active = registry
	}
	retriever := rag.NewRetriever(index, chatModel, active, sysLogger, rag.RetrieverConfig{
		DefaultTopK:        cfg.Rag.DefaultTopK,
		MaxTopK:            cfg.Rag.MaxTopK,
		FetchKMultiplier:   cfg.Rag.FetchKMultiplier,
		FetchKFloor:        cfg.Rag.FetchKFloor,
		DefaultTemperature: cfg.Rag.DefaultTemperature,
		UpstreamTimeout:    cfg.Rag.UpstreamTimeout,
	})
	c.Purger = rag.NewPurger(index, sysLogger, cfg.Rag.UpstreamTimeout)

	// 7. Services
	cleanupQueue := service.NewPublisherService(service.IndexCleanupTopic, pubSub)
	c.CleanupConsumer = service.NewIndexCleanupConsumer(
		pubSub,
		cleanupQueue,
		service.IndexCleanupTopic,
		uowFactory,
		c.Purger,
		sysLogger,
		cleanupRetryDelay,
	)
	deleter := service.NewDocumentDeleter(uowFactory, c.Purger, fileStorage, cleanupQueue, eventPublisher, sysLogger)

	authService := service.NewAuthService(uowFactory, eventPublisher, sysLogger, cfg.Auth)
	documentService := service.NewDocumentService(uowFactory, c.Ingestor, deleter)
	queryService := service.NewQueryService(retriever)
	adminService := service.NewAdminService(uowFactory, deleter, c.Purger, sysLogger, sysLogger)

	c.AuthController = controller.NewAuthController(authService)
	c.DocumentController = controller.NewDocumentController(documentService)
	c.QueryController = controller.NewQueryController(queryService)
	c.AdminController = controller.NewAdminController(adminService)

	return c, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func (c *Container) newQueryCache(ctx context.Context, cfg *config.Config) cache.VectorCache {
	if cfg.App.RedisURL == "" {
		return cache.NewMemoryCache(cfg.Ai.QueryCacheTTL)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Using in-memory cache", err)
		_ = rdb.Close()
		return cache.NewMemoryCache(cfg.Ai.QueryCacheTTL)
	}
	c.closers = append(c.closers, func() { _ = rdb.Close() })
	return cache.NewRedisCache(rdb, cfg.Ai.QueryCacheTTL)
}

// newChatModel returns a nil model when generation is disabled or the provider
// cannot be built (e.g. a missing API key). Answers then degrade to an error
// string while auth, upload and retrieval keep working.
func newChatModel(ctx context.Context, cfg *config.Config) llm.LLMProvider {
	factoryCfg := llmFactory.Config{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
	}
	switch cfg.Ai.LLMProvider {
	case "gemini", "google":
		factoryCfg.APIKey = cfg.Ai.GeminiAPIKey
	case "ollama":
		factoryCfg.BaseURL = cfg.Ai.OllamaBaseURL
	case "huggingface":
		factoryCfg.APIKey = cfg.Ai.HuggingFaceAPIKey
	}

	model, err := llmFactory.NewLLMProvider(ctx, factoryCfg)
	if errors.Is(err, llm.ErrProviderDisabled) {
		log.Printf("[WARN] LLM provider disabled; answers will carry a generation error")
		return nil
	}
	if err != nil {
		log.Printf("[WARN] LLM provider %q unavailable: %v; answers will carry a generation error", cfg.Ai.LLMProvider, err)
		return nil
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	return model
}

func newVectorIndex(db *gorm.DB, provider embedding.EmbeddingProvider, cfg *config.Config) (vectorindex.Index, error) {
	switch cfg.VectorStore.Backend {
	case "chromem", "chroma":
		return vectorindex.NewChromemIndex(cfg.VectorStore.ChromemDir, cfg.VectorStore.Collection, provider, cfg.Rag.EmbedConcurrency)
	case "pgvector", "":
		return vectorindex.NewPgVectorIndex(db, provider, cfg.VectorStore.Collection, cfg.Rag.EmbedConcurrency), nil
	default:
		return nil, fmt.Errorf("unsupported vector store: %s", cfg.VectorStore.Backend)
	}
}
