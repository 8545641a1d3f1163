package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mobatt/mobatt-backend/internal/handlers"
	"github.com/mobatt/mobatt-backend/internal/metrics"
	"github.com/mobatt/mobatt-backend/internal/middleware"
)

type RouterConfig struct {
	AdminMiddleware   *middleware.AdminMiddleware
	PipelineHandler   *handlers.PipelineHandler
	RevalidateHandler *handlers.RevalidateHandler
	Registry          *metrics.Registry
	AllowOrigins      []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	if cfg.Registry != nil {
		router.GET("/metrics", gin.WrapH(cfg.Registry.Handler()))
	}
	router.POST("/api/revalidate", cfg.RevalidateHandler.Revalidate)

	// ===============
	// || Protected ||
	// ===============
	pipeline := router.Group("/api/pipeline")
	pipeline.Use(cfg.AdminMiddleware.RequireToken())
	pipeline.POST("/fetch", cfg.PipelineHandler.Fetch)
	pipeline.POST("/project", cfg.PipelineHandler.Project)
	pipeline.POST("/normalize-prices", cfg.PipelineHandler.NormalizePrices)
	pipeline.POST("/quality", cfg.PipelineHandler.Quality)
	pipeline.POST("/generate", cfg.PipelineHandler.Generate)

	return router
}
