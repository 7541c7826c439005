package bootstrap

import (
	"log"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/internal/config"
	"doc-chat-be/internal/controller"
	"doc-chat-be/internal/extractor"
	"doc-chat-be/internal/index"
	"doc-chat-be/internal/pkg/logger"
	"doc-chat-be/internal/retriever"
	"doc-chat-be/internal/service"
	"doc-chat-be/internal/session"
	"doc-chat-be/pkg/chunker"
	"doc-chat-be/pkg/database"
	"doc-chat-be/pkg/embedding"
	"doc-chat-be/pkg/embedding/cache"
	"doc-chat-be/pkg/llm/factory"
)

type Container struct {
	SessionController controller.ISessionController
	UploadController  controller.IUploadController
	ChatController    controller.IChatController

	Logger   logger.ILogger
	Registry *session.Registry
}

// NewContainer wires the whole dependency graph. Fails fast on any
// configuration problem so a misconfigured instance never serves traffic.
func NewContainer(cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Vector index: Postgres/pgvector when a DSN is configured, otherwise
	// the in-process index.
	var idx index.VectorIndex
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDB(cfg.Database.Connection)
		if err != nil {
			return nil, err
		}
		idx, err = index.NewPgVectorIndex(db)
		if err != nil {
			return nil, err
		}
		log.Println("[INFO] Using vector index: PGVECTOR")
	} else {
		idx = index.NewMemoryIndex()
		log.Println("[INFO] Using vector index: MEMORY")
	}

	embeddingCache, err := cache.New(cfg.Retrieval.CacheCapacity)
	if err != nil {
		return nil, err
	}

	providers := make(map[string]embedding.Provider)
	providers["ollama"] = cache.NewCachedProvider(
		embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel),
		embeddingCache,
	)
	if cfg.Ai.GeminiApiKey != "" {
		providers["gemini"] = cache.NewCachedProvider(
			embedding.NewGeminiProvider(cfg.Ai.GeminiApiKey),
			embeddingCache,
		)
	}
	if _, ok := providers[cfg.Ai.EmbeddingProvider]; !ok {
		return nil, apperr.Newf(apperr.ErrInvalidConfiguration, "EMBEDDING_PROVIDER %q is not available", cfg.Ai.EmbeddingProvider)
	}
	log.Printf("[INFO] Default embedding provider: %s", cfg.Ai.EmbeddingProvider)

	llmProvider, err := factory.New(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.OllamaBaseURL)
	if err != nil {
		return nil, err
	}

	chk, err := chunker.New(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	registry := session.NewRegistry(cfg.Session, idx.DeleteSession, sysLogger)

	retrievers := make(map[string]*retriever.Retriever, len(providers))
	for name, provider := range providers {
		r, err := retriever.New(provider, idx, cfg.Retrieval.OverfetchFactor, sysLogger)
		if err != nil {
			return nil, err
		}
		retrievers[name] = r
	}

	sessionService := service.NewSessionService(registry, providers, cfg.Ai.EmbeddingProvider, sysLogger)
	documentService := service.NewDocumentService(registry, extractor.NewPlainText(), chk, providers, idx, cfg.Session, sysLogger)
	chatService := service.NewChatService(registry, retrievers, llmProvider, cfg.Retrieval, cfg.Session, sysLogger)

	return &Container{
		SessionController: controller.NewSessionController(sessionService),
		UploadController:  controller.NewUploadController(documentService),
		ChatController:    controller.NewChatController(chatService),
		Logger:            sysLogger,
		Registry:          registry,
	}, nil
}
