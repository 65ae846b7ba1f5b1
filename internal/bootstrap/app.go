package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-advisor/internal/ai"
	"course-advisor/internal/app"
	"course-advisor/internal/cache"
	"course-advisor/internal/config"
	"course-advisor/internal/embedding"
	"course-advisor/internal/pkg/limiter"
	"course-advisor/internal/pkg/retry"
	"course-advisor/internal/platform/database"
	"course-advisor/internal/platform/logger"
	rabbitmqClient "course-advisor/internal/platform/rabbitmq"
	redisClient "course-advisor/internal/platform/redis"
	"course-advisor/internal/repository"
	"course-advisor/internal/retrieval"
	"course-advisor/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Providers        *embedding.Registry
	Engine           *retrieval.Engine
	Recommender      *app.RecommendService
	OutcomeEmbedding *app.OutcomeEmbeddingService
	EmbeddingWorker  *worker.OutcomeEmbeddingWorker

	StartedAt time.Time
}

// New builds every dependency once. On error, whatever was opened so far is
// closed before returning.
func New(ctx context.Context) (_ *App, err error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: log, StartedAt: time.Now()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.DB, err = database.New(ctx, cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver != "postgres" {
		if err := repository.AutoMigrate(a.DB); err != nil {
			return nil, err
		}
	}

	a.Redis, err = redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.EmbeddingQueue)
	if err != nil {
		return nil, err
	}

	a.Providers, err = buildProviders(cfg, a.Redis, log.Named("embedding"))
	if err != nil {
		return nil, err
	}

	searcher := repository.NewOutcomeSearcher(cfg.Database.Driver, a.DB)
	a.Engine = retrieval.NewEngine(a.Providers, searcher, log.Named("retrieval"))

	lim, err := limiter.New(cfg.Pipeline.Concurrency)
	if err != nil {
		return nil, err
	}
	assistant := ai.NewAssistant(ai.NewChatClient(ai.ChatConfig{
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		Timeout:           time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	}))
	a.Recommender = app.NewRecommendService(
		app.Collaborators{
			Classifier:  assistant,
			Profiles:    assistant,
			Expander:    assistant,
			Scorer:      assistant,
			Synthesizer: assistant,
		},
		a.Engine,
		lim,
		pipelineOptions(cfg),
		log.Named("pipeline"),
	)

	publisher := rabbitmqClient.NewJobPublisher(a.MQConn, cfg.RabbitMQ.EmbeddingQueue)
	a.OutcomeEmbedding = app.NewOutcomeEmbeddingService(
		a.Providers,
		repository.NewOutcomeRepository(a.DB),
		repository.NewEmbeddingVectorRepository(a.DB),
		publisher,
		log.Named("ingestion"),
	)

	a.EmbeddingWorker = worker.NewOutcomeEmbeddingWorker(a.MQConn, a.OutcomeEmbedding, cfg.RabbitMQ.EmbeddingQueue, log.Named("worker"))
	if err := a.EmbeddingWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start embedding worker failed: %w", err)
	}

	log.Info("application bootstrapped",
		zap.String("database", cfg.Database.Driver),
		zap.Int("embedding_providers", len(a.Providers.Specs())),
		zap.Int("pipeline_concurrency", lim.Limit()))
	return a, nil
}

// buildProviders registers every configured provider behind the Redis query cache.
func buildProviders(cfg *config.Config, rdb *redis.Client, log *zap.Logger) (*embedding.Registry, error) {
	vectorCache := cache.NewEmbeddingCache(rdb, time.Duration(cfg.Redis.EmbeddingCacheTTLSeconds)*time.Second)

	providers := make([]embedding.Provider, 0, len(cfg.Embedding.Providers))
	for _, pc := range cfg.Embedding.Providers {
		p, err := embedding.NewProvider(embedding.ProviderConfig{
			Provider:      pc.Provider,
			Model:         pc.Model,
			Dimension:     pc.Dimension,
			BaseURL:       pc.BaseURL,
			APIKey:        pc.APIKey,
			QueryPrefix:   pc.QueryPrefix,
			PassagePrefix: pc.PassagePrefix,
			Timeout:       time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("build embedding provider %s/%s failed: %w", pc.Provider, pc.Model, err)
		}
		providers = append(providers, embedding.NewCachedProvider(p, vectorCache, log))
	}

	registry, err := embedding.NewRegistry(providers...)
	if err != nil {
		return nil, err
	}
	if _, err := registry.Lookup(cfg.Embedding.DefaultModel, cfg.Embedding.DefaultProvider); err != nil {
		return nil, fmt.Errorf("default embedding: %w", err)
	}
	return registry, nil
}

func pipelineOptions(cfg *config.Config) app.PipelineOptions {
	fallback := func(m config.FallbackMessage) app.FallbackMessage {
		return app.FallbackMessage{Message: m.Message, SuggestedFollowUp: m.SuggestedFollowUp}
	}
	return app.PipelineOptions{
		Threshold: cfg.Retrieval.Threshold,
		TopN:      cfg.Retrieval.TopN,
		Embedding: retrieval.EmbeddingConfig{
			Model:    cfg.Embedding.DefaultModel,
			Provider: cfg.Embedding.DefaultProvider,
		},
		MaxCoursesPerSkill: cfg.Pipeline.MaxCoursesPerSkill,
		MinRelevanceScore:  cfg.Pipeline.MinRelevanceScore,
		Retry: retry.Policy{
			Timeout:    time.Duration(cfg.Pipeline.CallTimeoutSeconds) * time.Second,
			MaxRetries: cfg.Pipeline.MaxRetries,
		},
		Fallbacks: app.Fallbacks{
			Irrelevant:   fallback(cfg.Fallback.Irrelevant),
			Dangerous:    fallback(cfg.Fallback.Dangerous),
			EmptyResults: fallback(cfg.Fallback.EmptyResults),
		},
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.EmbeddingWorker != nil {
		a.EmbeddingWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}
