package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sidiya/voursa-scraper/internal/assets"
	"github.com/sidiya/voursa-scraper/internal/browser"
	"github.com/sidiya/voursa-scraper/internal/builder"
	"github.com/sidiya/voursa-scraper/internal/config"
	"github.com/sidiya/voursa-scraper/internal/crawler"
	"github.com/sidiya/voursa-scraper/internal/dedupe"
	"github.com/sidiya/voursa-scraper/internal/fetch"
	"github.com/sidiya/voursa-scraper/internal/metrics"
	"github.com/sidiya/voursa-scraper/internal/models"
	"github.com/sidiya/voursa-scraper/internal/parser"
	"github.com/sidiya/voursa-scraper/internal/ratelimit"
	"github.com/sidiya/voursa-scraper/internal/session"
	"github.com/sidiya/voursa-scraper/internal/snapshot"
	"github.com/sidiya/voursa-scraper/internal/store"
	"github.com/sidiya/voursa-scraper/pkg/logger"
)

type crawlRequest struct {
	Categories     []string `json:"categories"`
	AdsPerCategory int      `json:"ads_per_category"`
	DownloadImages *bool    `json:"download_images"`
}

// runner serializes crawl sessions: the site is small and one browser is
// plenty, so a second request while one runs gets 409.
type runner struct {
	cfg     *config.Config
	browser *browser.Browser
	metrics *metrics.Metrics
	db      *store.Store
	rdb     *redis.Client
	logger  *slog.Logger

	mu         sync.Mutex
	running    bool
	sessionID  string
	lastReport *session.Report
}

func (rn *runner) start(ctx context.Context, req crawlRequest) (string, error) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	if rn.running {
		return "", fmt.Errorf("a crawl session is already running (%s)", rn.sessionID)
	}

	categories := models.Categories
	if len(req.Categories) > 0 {
		categories = make([]models.Category, 0, len(req.Categories))
		for _, key := range req.Categories {
			category, ok := models.CategoryByKey(key)
			if !ok {
				return "", fmt.Errorf("unknown category %q", key)
			}
			categories = append(categories, category)
		}
	}

	adsPerCategory := rn.cfg.Crawl.AdsPerCategory
	if req.AdsPerCategory > 0 {
		adsPerCategory = req.AdsPerCategory
	}
	downloadImages := rn.cfg.Assets.Download
	if req.DownloadImages != nil {
		downloadImages = *req.DownloadImages
	}

	s, page, err := rn.buildSession(ctx, categories, adsPerCategory, downloadImages)
	if err != nil {
		return "", err
	}

	rn.running = true
	rn.sessionID = s.ID()

	go func() {
		defer page.Close()

		report, err := s.Run(ctx)
		if err != nil {
			rn.logger.Warn("session ended early", "session_id", s.ID(), "error", err)
		}

		rn.mu.Lock()
		rn.running = false
		rn.lastReport = report
		rn.mu.Unlock()
	}()

	return s.ID(), nil
}

func (rn *runner) buildSession(ctx context.Context, categories []models.Category, adsPerCategory int, downloadImages bool) (*session.Session, *browser.Session, error) {
	page, err := rn.browser.NewSession(rn.cfg.Crawl.PageTimeout, rn.cfg.Crawl.SettleDelay)
	if err != nil {
		return nil, nil, fmt.Errorf("open browser page: %w", err)
	}

	pageLimiter := ratelimit.NewSimpleRateLimiter(rn.cfg.Crawl.PageDelayMin, rn.cfg.Crawl.PageDelayMax)
	listingFetcher := metrics.InstrumentFetcher(page, "listing", rn.metrics)
	c, err := crawler.New(listingFetcher, pageLimiter, crawler.Options{
		BaseURL:       rn.cfg.Crawl.BaseURL,
		ListingMarker: rn.cfg.Crawl.ListingMarker,
		MaxPages:      rn.cfg.Crawl.MaxPages,
	})
	if err != nil {
		page.Close()
		return nil, nil, err
	}

	p, err := parser.New(rn.cfg.Crawl.BaseURL, rn.cfg.Assets.DefaultCurrency)
	if err != nil {
		page.Close()
		return nil, nil, err
	}
	recordBuilder := builder.New(metrics.InstrumentFetcher(page, "detail", rn.metrics), p)

	assetLimiter := ratelimit.NewAdaptiveRateLimiter(rn.cfg.Crawl.PageDelayMin/2, rn.cfg.Crawl.PageDelayMax/2)
	httpClient := fetch.NewClient(rn.cfg.Assets.Timeout, rn.cfg.Browser.UserAgent)
	downloader := assets.New(httpClient, assetLimiter, rn.cfg.Assets.Dir, rn.cfg.Assets.Workers)

	sink, err := snapshot.NewFileSink(rn.cfg.Output.DataDir)
	if err != nil {
		page.Close()
		return nil, nil, err
	}

	s := session.New(c, recordBuilder, downloader, sink, session.Options{
		Categories:     categories,
		AdsPerCategory: adsPerCategory,
		DownloadImages: downloadImages,
	}).WithMetrics(rn.metrics)

	if rn.rdb != nil {
		registry, err := dedupe.New(4096, rn.rdb, 7*24*time.Hour)
		if err != nil {
			page.Close()
			return nil, nil, err
		}
		s.WithRegistry(registry)
	}
	if rn.db != nil {
		s.WithPersister(rn.db)
	}

	return s, page, nil
}

func (rn *runner) stats(ctx context.Context) map[string]any {
	rn.mu.Lock()
	out := map[string]any{
		"running": rn.running,
	}
	if rn.running {
		out["session_id"] = rn.sessionID
	}
	if rn.lastReport != nil {
		out["last_session"] = rn.lastReport
	}
	rn.mu.Unlock()

	if rn.db != nil {
		if counts, err := rn.db.CountByCategory(ctx); err == nil {
			out["stored_by_category"] = counts
		}
	}
	return out
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("Starting Voursa scraper daemon", "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		Locale:         cfg.Browser.Locale,
	})
	if err != nil {
		log.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	rn := &runner{
		cfg:     cfg,
		browser: b,
		metrics: metrics.New(),
		logger:  log.With("component", "runner"),
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		rn.rdb = rdb
	}

	if cfg.Database.DSN != "" {
		db, err := store.New(ctx, store.Config{DSN: cfg.Database.DSN, MaxConns: cfg.Database.MaxConns})
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			log.Error("failed to prepare database schema", "error", err)
			os.Exit(1)
		}
		rn.db = db
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(rn.metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/crawl", func(w http.ResponseWriter, req *http.Request) {
			var body crawlRequest
			if req.Body != nil && req.ContentLength != 0 {
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
					return
				}
			}

			for _, key := range body.Categories {
				if _, ok := models.CategoryByKey(key); !ok {
					writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", key))
					return
				}
			}

			sessionID, err := rn.start(ctx, body)
			if err != nil {
				writeError(w, http.StatusConflict, err.Error())
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"session_id": sessionID})
		})

		r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(rn.stats(req.Context()))
		})

		r.Get("/categories", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(models.Categories)
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
