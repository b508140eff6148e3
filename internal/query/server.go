// Package querysvc provides the question-answering server implementation.
package querysvc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/bookqa/internal/query/biz"
	"github.com/kart-io/bookqa/internal/query/handler"
	"github.com/kart-io/bookqa/internal/query/router"
	"github.com/kart-io/bookqa/internal/query/store"
	"github.com/kart-io/bookqa/pkg/app"
	"github.com/kart-io/bookqa/pkg/component/milvus"
	"github.com/kart-io/bookqa/pkg/llm"
	// Import LLM providers for side-effect registration
	_ "github.com/kart-io/bookqa/pkg/llm/gemini"
	_ "github.com/kart-io/bookqa/pkg/llm/ollama"
	_ "github.com/kart-io/bookqa/pkg/llm/openai"
	cacheopts "github.com/kart-io/bookqa/pkg/options/cache"
	httpopts "github.com/kart-io/bookqa/pkg/options/http"
	llmopts "github.com/kart-io/bookqa/pkg/options/llm"
	logopts "github.com/kart-io/bookqa/pkg/options/logger"
	milvusopts "github.com/kart-io/bookqa/pkg/options/milvus"
	queryopts "github.com/kart-io/bookqa/pkg/options/query"
)

// Name is the name of the application.
const Name = "bookqa"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	QueryOptions     *queryopts.Options
	CacheOptions     *cacheopts.Options
	ShutdownTimeout  time.Duration
}

// Server represents the question-answering server.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	milvusClose     func()
	redisClose      func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(_ context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. Logger
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting question-answering service...")

	// 2. Milvus client
	milvusClient, err := milvus.New(cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	logger.Info("Milvus client initialized")

	// 3. Store layer
	vectorStore := store.NewMilvusStore(milvusClient)
	logger.Info("Vector store initialized")

	// 4. Redis response cache
	var responseCache *biz.ResponseCache
	var redisClose func()
	if cfg.CacheOptions.Enabled {
		redisOpts := cfg.CacheOptions.Redis
		if redisOpts == nil {
			logger.Warn("Cache is enabled but no Redis configuration provided in CacheOptions")
		} else {
			redisClient := goredis.NewClient(&goredis.Options{
				Addr:         fmt.Sprintf("%s:%d", redisOpts.Host, redisOpts.Port),
				Password:     redisOpts.Password,
				DB:           redisOpts.Database,
				MaxRetries:   redisOpts.MaxRetries,
				PoolSize:     redisOpts.PoolSize,
				MinIdleConns: redisOpts.MinIdleConns,
			})

			if err := redisClient.Ping(context.Background()).Err(); err != nil {
				logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
				_ = redisClient.Close()
			} else {
				responseCache = biz.NewResponseCache(redisClient, &biz.ResponseCacheConfig{
					Enabled:   true,
					TTL:       cfg.CacheOptions.TTL,
					KeyPrefix: cfg.CacheOptions.KeyPrefix,
				})
				redisClose = func() { _ = redisClient.Close() }
				logger.Infow("Redis cache initialized",
					"host", redisOpts.Host,
					"port", redisOpts.Port,
					"ttl", cfg.CacheOptions.TTL,
				)
			}
		}
	} else {
		logger.Info("Cache is disabled")
	}

	// 5. LLM providers
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 6. Pipeline
	serviceConfig := &biz.ServiceConfig{
		RetrieverConfig: &biz.RetrieverConfig{
			TopK:       cfg.QueryOptions.TopK,
			Collection: cfg.QueryOptions.Collection,
		},
		GeneratorConfig: &biz.GeneratorConfig{
			BookWidePrompt:     cfg.QueryOptions.BookWidePrompt,
			SelectedTextPrompt: cfg.QueryOptions.SelectedTextPrompt,
			ContextPreviewLen:  cfg.QueryOptions.ContextPreviewLen,
			Confidence:         cfg.QueryOptions.Confidence,
		},
		ResponseBudget: cfg.QueryOptions.ResponseBudget,
		SnippetMaxLen:  cfg.QueryOptions.SnippetMaxLen,
	}
	pipeline := biz.NewQueryPipeline(vectorStore, embedProvider, chatProvider, responseCache, serviceConfig)
	logger.Infow("Query pipeline initialized",
		"collection", cfg.QueryOptions.Collection,
		"top_k", cfg.QueryOptions.TopK,
		"response_budget", cfg.QueryOptions.ResponseBudget,
		"cache.enabled", responseCache != nil,
	)

	// 7. HTTP layer
	queryHandler := handler.NewQueryHandler(pipeline)
	engine := router.New(queryHandler)

	httpServer := &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	logger.Info("Question-answering service is ready")
	return &Server{
		httpServer:      httpServer,
		shutdownTimeout: cfg.ShutdownTimeout,
		milvusClose:     func() { _ = milvusClient.Close(context.Background()) },
		redisClose:      redisClose,
	}, nil
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if s.milvusClose != nil {
			s.milvusClose()
		}
		if s.redisClose != nil {
			s.redisClose()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Collection: %s\n", cfg.QueryOptions.Collection)
}
