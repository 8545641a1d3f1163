package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mobatt/mobatt-backend/internal/adapters"
	"github.com/mobatt/mobatt-backend/internal/db"
	"github.com/mobatt/mobatt-backend/internal/locks"
	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/repos"
	"github.com/mobatt/mobatt-backend/internal/rules"
	"github.com/mobatt/mobatt-backend/internal/services"
	"github.com/mobatt/mobatt-backend/internal/utils"
)

// One-shot pipeline run for cron containers and local debugging: fetch,
// project, normalize, then the quality sweep, sequentially.
func main() {
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

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	ruleSet := rules.Default()
	if path := utils.GetEnv("TAG_RULES_PATH", "", log); path != "" {
		loaded, err := rules.LoadFile(path)
		if err != nil {
			log.Error("Could not load tag rules", "path", path, "error", err)
			os.Exit(1)
		}
		ruleSet = loaded
	}

	var sources []adapters.SourceAdapter
	if utils.GetEnvAsBool("SOURCES_MOCK", false, log) {
		sources = []adapters.SourceAdapter{
			adapters.NewMockAdapter(adapters.SourceRakuten, 1, 20),
			adapters.NewMockAdapter(adapters.SourceAmazon, 2, 20),
		}
	} else {
		sources = []adapters.SourceAdapter{
			adapters.NewRakutenAdapter(log, adapters.RakutenOptions{
				ApplicationID: os.Getenv("RAKUTEN_APPLICATION_ID"),
				AffiliateID:   os.Getenv("RAKUTEN_AFFILIATE_ID"),
			}),
			adapters.NewAmazonAdapter(log, adapters.AmazonOptions{
				BaseURL: os.Getenv("AMAZON_FEED_BASE_URL"),
				APIKey:  os.Getenv("AMAZON_FEED_API_KEY"),
			}),
			adapters.NewYahooAdapter(log, adapters.YahooOptions{
				AppID: os.Getenv("YAHOO_APP_ID"),
			}),
		}
	}

	pipeline := services.NewPipelineService(
		thePG, log, sources, ruleSet, locks.NewMemoryLock(nil), nil,
		repos.NewCatalogItemRepo(thePG, log),
		repos.NewMonitoredItemRepo(thePG, log),
		repos.NewBlogPostRepo(thePG, log),
		repos.NewAuditRepo(thePG, log),
		repos.NewQuarantineRepo(thePG, log),
		repos.NewSourceItemRepo(thePG, log),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	fetch, err := pipeline.RunFetch(ctx)
	if err != nil {
		log.Fatal("fetch stage failed", "error", err)
	}
	log.Info("fetch done", "created", fetch.Created, "updated", fetch.Updated, "failed", fetch.Failed)

	proj, err := pipeline.RunProjection(ctx)
	if err != nil {
		log.Fatal("projection stage failed", "error", err)
	}
	log.Info("projection done", "projected", proj.Projected, "failed", proj.Failed)

	norm, err := pipeline.RunPriceNormalization(ctx)
	if err != nil {
		log.Fatal("price normalization failed", "error", err)
	}
	log.Info("price normalization done", "items", norm.Items, "dropped", norm.Dropped, "collapsed", norm.Collapsed)

	sweep, err := pipeline.RunQualitySweep(ctx)
	if err != nil {
		log.Fatal("quality sweep failed", "error", err)
	}
	log.Info("quality sweep done",
		"checked", sweep.Checked,
		"fixed", sweep.Fixed,
		"flagged", sweep.Flagged,
		"quarantined", sweep.Quarantined,
	)
}
