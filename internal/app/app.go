package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/astrax-djp/astrax-rag/internal/cache"
	"github.com/astrax-djp/astrax-rag/internal/config"
	"github.com/astrax-djp/astrax-rag/internal/db"
	"github.com/astrax-djp/astrax-rag/internal/llm"
	"github.com/astrax-djp/astrax-rag/internal/rag"
	"go.uber.org/zap"
)

// Provider is what the pipeline needs from a model vendor.
type Provider interface {
	rag.Embedder
	rag.Generator
}

// App owns the process-wide resource handles. Build it once with New, share
// it across requests, release it with Close.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Index   rag.VectorIndex
	Service *rag.Service

	closers []func() error
}

// New connects to the vector store and model provider and wires the
// pipeline. It fails if any resource cannot be initialized or if the
// embedding dimension disagrees with the index.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	if err := a.initIndex(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	provider, err := a.initProvider(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize model provider: %w", err)
	}

	var embedder rag.Embedder = provider
	if cfg.EmbeddingCachePath != "" {
		cached, err := cache.NewCachedEmbedder(cfg.EmbeddingCachePath, provider, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, cached.Close)
		embedder = cached
	}

	svc, err := Wire(cfg, embedder, a.Index, provider, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Service = svc

	if err := a.checkIndex(ctx, embedder); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("pipeline initialized",
		zap.String("profile", cfg.Profile),
		zap.String("vector_backend", cfg.VectorBackend),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("chat_model", cfg.ChatModel),
		zap.String("embedding_model", embedder.ModelName()),
		zap.Int("top_k", cfg.TopK),
	)
	return a, nil
}

// Wire builds the pipeline from already-initialized collaborators.
func Wire(cfg *config.Config, embedder rag.Embedder, index rag.VectorIndex, generator rag.Generator, logger *zap.Logger) (*rag.Service, error) {
	assembler, err := rag.NewPromptAssembler(cfg.PromptTemplate, cfg.ResponseLanguage)
	if err != nil {
		return nil, err
	}
	retriever := rag.NewVectorRetriever(embedder, index, cfg.SearchOptions(), logger)
	return rag.NewService(retriever, assembler, generator, rag.PostProcessor{}, rag.ServiceConfig{
		FallbackMessage: cfg.FallbackMessage,
		ErrorMessage:    cfg.ErrorMessage,
		RequestTimeout:  cfg.RequestTimeout,
	}, logger), nil
}

func (a *App) initIndex(ctx context.Context) error {
	cfg := a.Config
	switch cfg.VectorBackend {
	case config.BackendPgvector:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		a.Index = rag.NewPgIndex(pool, cfg.IndexName)

	case config.BackendMongoDB:
		client, err := db.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
		coll := client.Database(cfg.MongoDatabase).Collection(cfg.IndexName)
		a.Index = rag.NewMongoIndex(coll, rag.MongoIndexConfig{
			SearchIndex: cfg.SearchIndex,
			TextField:   cfg.TextField,
			VectorField: cfg.VectorField,
		})

	default:
		return fmt.Errorf("unsupported vector backend %q", cfg.VectorBackend)
	}
	return nil
}

func (a *App) initProvider(ctx context.Context) (Provider, error) {
	cfg := a.Config
	opts := llm.Options{
		EmbeddingModel: cfg.EmbeddingModel,
		Dimension:      cfg.EmbeddingDimensions,
		ChatModel:      cfg.ChatModel,
		Temperature:    cfg.Temperature,
		MaxTokens:      cfg.MaxTokens,
		Timeout:        cfg.RequestTimeout,
	}

	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		opts.BaseURL = cfg.OpenAIBaseURL
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey, opts)
	case config.ProviderGemini:
		return llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, opts)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

// checkIndex refuses to serve against a missing index or one whose vectors
// have a different dimension than the embedder produces.
func (a *App) checkIndex(ctx context.Context, embedder rag.Embedder) error {
	info, err := a.Index.Describe(ctx)
	if err != nil {
		return fmt.Errorf("describe vector index: %w", err)
	}
	if info.Dimension > 0 && info.Dimension != embedder.Dimension() {
		return fmt.Errorf("vector index %s stores %d-dimensional vectors but %s produces %d",
			info.Name, info.Dimension, embedder.ModelName(), embedder.Dimension())
	}
	if info.Dimension == 0 {
		a.Logger.Warn("vector index did not report its dimension", zap.String("index", info.Name))
	}
	return nil
}

// Ready reports whether the vector index is reachable.
func (a *App) Ready(ctx context.Context) error {
	_, err := a.Index.Describe(ctx)
	return err
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
