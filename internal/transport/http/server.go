package http

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"course-advisor/internal/bootstrap"
	"course-advisor/internal/platform/logger"
	"course-advisor/internal/retrieval"
	"course-advisor/internal/transport/http/handler"
	"course-advisor/internal/transport/http/middleware"
)

// Handlers groups the endpoints served by the router.
type Handlers struct {
	Health         *handler.HealthHandler
	Recommendation *handler.RecommendationHandler
	Retrieval      *handler.RetrievalHandler
	Outcomes       *handler.OutcomeHandler
	Embeddings     *handler.EmbeddingHandler
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)

	defaultEmbedding := retrieval.EmbeddingConfig{
		Model:    app.Config.Embedding.DefaultModel,
		Provider: app.Config.Embedding.DefaultProvider,
	}
	h := Handlers{
		Health: handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, map[string]handler.HealthCheck{
			"database": func(ctx context.Context) error {
				sqlDB, err := app.DB.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error {
				return app.Redis.Ping(ctx).Err()
			},
			"rabbitmq": func(context.Context) error {
				if app.MQConn == nil || app.MQConn.IsClosed() {
					return errors.New("connection closed")
				}
				return nil
			},
		}),
		Recommendation: handler.NewRecommendationHandler(app.Recommender),
		Retrieval: handler.NewRetrievalHandler(app.Engine, handler.RetrievalDefaults{
			Threshold: app.Config.Retrieval.Threshold,
			TopN:      app.Config.Retrieval.TopN,
			Embedding: defaultEmbedding,
		}),
		Outcomes:   handler.NewOutcomeHandler(app.OutcomeEmbedding, defaultEmbedding),
		Embeddings: handler.NewEmbeddingHandler(app.Providers),
	}
	return newRouter(app.Logger, h)
}

func newRouter(log *zap.Logger, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID(), logger.GinMiddleware(log), gin.Recovery())

	router.GET("/healthz", h.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.POST("/recommendations", h.Recommendation.Recommend)
	v1.POST("/retrieval/matches", h.Retrieval.FindMatches)
	v1.POST("/outcomes/embeddings", h.Outcomes.EmbedOutcomes)
	v1.GET("/embeddings/providers", h.Embeddings.ListProviders)

	return router
}
