package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sidiya/voursa-scraper/internal/assets"
	"github.com/sidiya/voursa-scraper/internal/browser"
	"github.com/sidiya/voursa-scraper/internal/builder"
	"github.com/sidiya/voursa-scraper/internal/config"
	"github.com/sidiya/voursa-scraper/internal/crawler"
	"github.com/sidiya/voursa-scraper/internal/dedupe"
	"github.com/sidiya/voursa-scraper/internal/fetch"
	"github.com/sidiya/voursa-scraper/internal/models"
	"github.com/sidiya/voursa-scraper/internal/parser"
	"github.com/sidiya/voursa-scraper/internal/ratelimit"
	"github.com/sidiya/voursa-scraper/internal/session"
	"github.com/sidiya/voursa-scraper/internal/snapshot"
	"github.com/sidiya/voursa-scraper/internal/store"
	"github.com/sidiya/voursa-scraper/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file (env vars override)")
		categories = flag.String("categories", "", "Comma-separated category keys (default: all)")
		ads        = flag.Int("ads", 0, "Target ads per category (overrides config)")
		headless   = flag.Bool("headless", true, "Run browser in headless mode")
		noImages   = flag.Bool("no-images", false, "Skip image downloads")
		dataDir    = flag.String("data-dir", "", "Snapshot output directory (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *ads > 0 {
		cfg.Crawl.AdsPerCategory = *ads
	}
	if *dataDir != "" {
		cfg.Output.DataDir = *dataDir
	}
	if *noImages {
		cfg.Assets.Download = false
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting Voursa scraper")

	selected, err := selectCategories(*categories, cfg.Crawl.Categories)
	if err != nil {
		logger.Error("Invalid category selection", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, finishing current work")
		cancel()
	}()

	b, err := browser.New(&browser.Options{
		Headless:       *headless && cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		Locale:         cfg.Browser.Locale,
	})
	if err != nil {
		logger.Error("Failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	page, err := b.NewSession(cfg.Crawl.PageTimeout, cfg.Crawl.SettleDelay)
	if err != nil {
		logger.Error("Failed to open browser page", "error", err)
		os.Exit(1)
	}
	defer page.Close()

	pageLimiter := ratelimit.NewSimpleRateLimiter(cfg.Crawl.PageDelayMin, cfg.Crawl.PageDelayMax)
	c, err := crawler.New(page, pageLimiter, crawler.Options{
		BaseURL:       cfg.Crawl.BaseURL,
		ListingMarker: cfg.Crawl.ListingMarker,
		MaxPages:      cfg.Crawl.MaxPages,
	})
	if err != nil {
		logger.Error("Failed to initialize crawler", "error", err)
		os.Exit(1)
	}

	p, err := parser.New(cfg.Crawl.BaseURL, cfg.Assets.DefaultCurrency)
	if err != nil {
		logger.Error("Failed to initialize parser", "error", err)
		os.Exit(1)
	}
	recordBuilder := builder.New(page, p)

	assetLimiter := ratelimit.NewAdaptiveRateLimiter(cfg.Crawl.PageDelayMin/2, cfg.Crawl.PageDelayMax/2)
	httpClient := fetch.NewClient(cfg.Assets.Timeout, cfg.Browser.UserAgent)
	downloader := assets.New(httpClient, assetLimiter, cfg.Assets.Dir, cfg.Assets.Workers)

	sink, err := snapshot.NewFileSink(cfg.Output.DataDir)
	if err != nil {
		logger.Error("Failed to prepare output directory", "error", err)
		os.Exit(1)
	}

	s := session.New(c, recordBuilder, downloader, sink, session.Options{
		Categories:     selected,
		AdsPerCategory: cfg.Crawl.AdsPerCategory,
		DownloadImages: cfg.Assets.Download,
	})

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		registry, err := dedupe.New(4096, rdb, 7*24*time.Hour)
		if err != nil {
			logger.Error("Failed to initialize dedup registry", "error", err)
			os.Exit(1)
		}
		s.WithRegistry(registry)
		logger.Info("Cross-run dedup enabled", "redis", cfg.Redis.Addr)
	}

	if cfg.Database.DSN != "" {
		db, err := store.New(ctx, store.Config{DSN: cfg.Database.DSN, MaxConns: cfg.Database.MaxConns})
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			logger.Error("Failed to prepare database schema", "error", err)
			os.Exit(1)
		}
		s.WithPersister(db)
		logger.Info("Record persistence enabled")
	}

	report, err := s.Run(ctx)
	if err != nil {
		logger.Warn("Session interrupted", "error", err)
	}

	fmt.Printf("Session %s finished: %d ads, %d images, %d errors in %s\n",
		report.SessionID, report.TotalRecords, report.TotalImages, report.Errors,
		report.Duration.Round(time.Second))

	if report.Interrupted {
		os.Exit(1)
	}
}

// selectCategories resolves the category set from the flag, then the config,
// then the full site taxonomy.
func selectCategories(flagValue string, configured []string) ([]models.Category, error) {
	keys := configured
	if flagValue != "" {
		keys = strings.Split(flagValue, ",")
	}
	if len(keys) == 0 {
		return models.Categories, nil
	}

	selected := make([]models.Category, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		category, ok := models.CategoryByKey(key)
		if !ok {
			return nil, fmt.Errorf("unknown category %q", key)
		}
		selected = append(selected, category)
	}
	if len(selected) == 0 {
		return models.Categories, nil
	}
	return selected, nil
}
