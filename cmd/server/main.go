package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/mobatt/mobatt-backend/internal/adapters"
	"github.com/mobatt/mobatt-backend/internal/db"
	"github.com/mobatt/mobatt-backend/internal/handlers"
	"github.com/mobatt/mobatt-backend/internal/locks"
	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/metrics"
	"github.com/mobatt/mobatt-backend/internal/middleware"
	"github.com/mobatt/mobatt-backend/internal/repos"
	"github.com/mobatt/mobatt-backend/internal/rules"
	"github.com/mobatt/mobatt-backend/internal/scheduler"
	"github.com/mobatt/mobatt-backend/internal/server"
	"github.com/mobatt/mobatt-backend/internal/services"
	"github.com/mobatt/mobatt-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	port := utils.GetEnv("PORT", "8080", log)
	adminToken := utils.GetEnv("ADMIN_API_TOKEN", "", log)
	revalidateSecret := utils.GetEnv("REVALIDATE_SECRET", "", log)
	redisAddr := utils.GetEnv("REDIS_ADDR", "", log)
	rulesPath := utils.GetEnv("TAG_RULES_PATH", "", log)
	allowOrigins := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Metrics
	registry := metrics.NewRegistry()

	// Job lock: redis when configured, in-process otherwise
	var jobLock locks.JobLock
	if redisAddr != "" {
		jobLock = locks.NewRedisLock(redis.NewClient(&redis.Options{Addr: redisAddr}), "mobatt:joblock:", log)
	} else {
		log.Warn("REDIS_ADDR not set, using process-local job lock")
		jobLock = locks.NewMemoryLock(nil)
	}

	// Tagging rules
	ruleSet := rules.Default()
	if rulesPath != "" {
		loaded, err := rules.LoadFile(rulesPath)
		if err != nil {
			log.Error("Could not load tag rules", "path", rulesPath, "error", err)
			os.Exit(1)
		}
		ruleSet = loaded
	}

	// Repos
	log.Info("Setting up Repos from main...")
	catalogRepo := repos.NewCatalogItemRepo(thePG, log)
	monitoredRepo := repos.NewMonitoredItemRepo(thePG, log)
	blogRepo := repos.NewBlogPostRepo(thePG, log)
	auditRepo := repos.NewAuditRepo(thePG, log)
	quarantineRepo := repos.NewQuarantineRepo(thePG, log)
	sourceRepo := repos.NewSourceItemRepo(thePG, log)
	flagRepo := repos.NewFeatureFlagRepo(thePG, log)

	// Source adapters
	sources := buildSources(log)

	// Services
	log.Info("Setting up Services from main...")
	revalService := services.NewRevalidateService(log)
	pipelineService := services.NewPipelineService(
		thePG, log, sources, ruleSet, jobLock, registry,
		catalogRepo, monitoredRepo, blogRepo, auditRepo, quarantineRepo, sourceRepo,
	)

	var generationService services.GenerationService
	aiClient, err := services.NewAIClient(log)
	if err != nil {
		log.Warn("Could not init AIClient, generation stage disabled", "error", err)
	} else {
		bucketService, err := services.NewBucketService(log)
		if err != nil {
			log.Error("Could not init BucketService", "error", err)
			os.Exit(1)
		}
		imageService, err := services.NewBlogImageService(log, bucketService)
		if err != nil {
			log.Error("Could not init BlogImageService", "error", err)
			os.Exit(1)
		}
		generationService = services.NewGenerationService(
			thePG, log, aiClient, imageService, revalService, jobLock, registry,
			monitoredRepo, blogRepo,
		)
	}

	// Handlers + middleware
	adminMiddleware := middleware.NewAdminMiddleware(log, adminToken)
	pipelineHandler := handlers.NewPipelineHandler(log, pipelineService, generationService, flagRepo)
	revalidateHandler := handlers.NewRevalidateHandler(log, revalidateSecret, revalService, registry)

	// Scheduler
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	sched := scheduler.New(log, pipelineService, generationService, flagRepo)
	if err := sched.Start(ctx); err != nil {
		log.Error("Could not start scheduler", "error", err)
		os.Exit(1)
	}

	// Router
	router := server.NewRouter(server.RouterConfig{
		AdminMiddleware:   adminMiddleware,
		PipelineHandler:   pipelineHandler,
		RevalidateHandler: revalidateHandler,
		Registry:          registry,
		AllowOrigins:      strings.Split(allowOrigins, ","),
	})

	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}

// buildSources wires one adapter per configured marketplace. Unconfigured
// adapters return empty batches, so listing them all is harmless, but MOCK
// mode replaces everything with deterministic synthetic data for local runs.
func buildSources(log *logger.Logger) []adapters.SourceAdapter {
	if utils.GetEnvAsBool("SOURCES_MOCK", false, log) {
		return []adapters.SourceAdapter{
			adapters.NewMockAdapter(adapters.SourceRakuten, 1, 20),
			adapters.NewMockAdapter(adapters.SourceAmazon, 2, 20),
			adapters.NewMockAdapter(adapters.SourceYahoo, 3, 20),
		}
	}
	return []adapters.SourceAdapter{
		adapters.NewRakutenAdapter(log, adapters.RakutenOptions{
			ApplicationID: os.Getenv("RAKUTEN_APPLICATION_ID"),
			AffiliateID:   os.Getenv("RAKUTEN_AFFILIATE_ID"),
			Keyword:       os.Getenv("RAKUTEN_SEARCH_KEYWORD"),
		}),
		adapters.NewAmazonAdapter(log, adapters.AmazonOptions{
			BaseURL: os.Getenv("AMAZON_FEED_BASE_URL"),
			APIKey:  os.Getenv("AMAZON_FEED_API_KEY"),
		}),
		adapters.NewYahooAdapter(log, adapters.YahooOptions{
			AppID: os.Getenv("YAHOO_APP_ID"),
			Query: os.Getenv("YAHOO_SEARCH_QUERY"),
		}),
	}
}
