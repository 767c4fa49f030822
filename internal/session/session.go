package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sidiya/voursa-scraper/internal/assets"
	"github.com/sidiya/voursa-scraper/internal/builder"
	"github.com/sidiya/voursa-scraper/internal/metrics"
	"github.com/sidiya/voursa-scraper/internal/models"
	"github.com/sidiya/voursa-scraper/internal/parser"
	"github.com/sidiya/voursa-scraper/internal/snapshot"
)

// Discoverer walks a category's listing pages and returns detail-page URLs.
type Discoverer interface {
	DiscoverURLs(ctx context.Context, category models.Category, targetCount int) ([]string, error)
}

// RecordBuilder turns one detail-page URL into a listing record.
type RecordBuilder interface {
	Build(ctx context.Context, url string, category models.Category) builder.Result
}

// AssetDownloader fetches a listing's images to local storage.
type AssetDownloader interface {
	DownloadAll(ctx context.Context, listing *models.Listing) assets.Stats
}

// SeenRegistry remembers ad ids across categories and, optionally, runs.
type SeenRegistry interface {
	Seen(ctx context.Context, adID string) bool
	Mark(ctx context.Context, adID string)
}

// Persister is an optional per-record sink, e.g. a database.
type Persister interface {
	SaveListing(ctx context.Context, categoryKey string, listing *models.Listing) error
}

type Options struct {
	Categories     []models.Category
	AdsPerCategory int
	DownloadImages bool
}

// Report is what a finished run hands back to the caller.
type Report struct {
	SessionID    string
	StartedAt    time.Time
	Duration     time.Duration
	TotalRecords int
	TotalImages  int
	Errors       int
	Interrupted  bool
}

// Session runs one full crawl: every configured category in order, a
// checkpoint after each, and a final snapshot at the end. Cancellation is
// graceful: whatever was collected is still checkpointed and finalized.
type Session struct {
	id         string
	discoverer Discoverer
	builder    RecordBuilder
	downloader AssetDownloader
	sink       snapshot.Sink
	registry   SeenRegistry
	persister  Persister
	metrics    *metrics.Metrics
	opts       Options
	logger     *slog.Logger

	mu          sync.Mutex
	results     map[string][]*models.Listing
	totalImages int
	errorCount  int
}

func New(discoverer Discoverer, b RecordBuilder, downloader AssetDownloader, sink snapshot.Sink, opts Options) *Session {
	if opts.AdsPerCategory <= 0 {
		opts.AdsPerCategory = 20
	}
	if len(opts.Categories) == 0 {
		opts.Categories = models.Categories
	}

	id := uuid.New().String()
	return &Session{
		id:         id,
		discoverer: discoverer,
		builder:    b,
		downloader: downloader,
		sink:       sink,
		opts:       opts,
		results:    make(map[string][]*models.Listing),
		logger:     slog.Default().With("component", "session", "session_id", id),
	}
}

// WithRegistry attaches a cross-run dedup registry.
func (s *Session) WithRegistry(r SeenRegistry) *Session {
	s.registry = r
	return s
}

// WithPersister attaches an optional per-record sink.
func (s *Session) WithPersister(p Persister) *Session {
	s.persister = p
	return s
}

// WithMetrics attaches Prometheus collectors.
func (s *Session) WithMetrics(m *metrics.Metrics) *Session {
	s.metrics = m
	return s
}

func (s *Session) ID() string { return s.id }

// Run executes the crawl and always writes a final snapshot, even when the
// context is cancelled mid-category. The returned report is never nil.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	s.logger.Info("session started",
		"categories", len(s.opts.Categories),
		"ads_per_category", s.opts.AdsPerCategory,
		"download_images", s.opts.DownloadImages)

	var runErr error
	for _, category := range s.opts.Categories {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		categoryStart := time.Now()
		listings, err := s.crawlCategory(ctx, category)

		s.mu.Lock()
		s.results[category.Key] = listings
		s.mu.Unlock()

		s.metrics.ObserveCategory(category.Key, time.Since(categoryStart))

		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("category crawl failed", "category", category.Key, "error", err)
			s.recordError()
			s.metrics.IncError("crawl", "category")
			err = nil
		}

		if cpErr := s.sink.WriteCheckpoint(s.snapshotResults()); cpErr != nil {
			s.logger.Error("checkpoint write failed", "category", category.Key, "error", cpErr)
			s.recordError()
			s.metrics.IncError("snapshot", "checkpoint")
		}

		s.logger.Info("category finished",
			"category", category.Key,
			"records", len(listings),
			"duration", time.Since(categoryStart).Round(time.Millisecond))

		if err != nil {
			runErr = err
			break
		}
	}

	report := s.finalize(start, runErr)
	return report, runErr
}

// crawlCategory collects up to AdsPerCategory records for one category. A
// failure here loses only this category; the session moves on.
func (s *Session) crawlCategory(ctx context.Context, category models.Category) ([]*models.Listing, error) {
	urls, err := s.discoverer.DiscoverURLs(ctx, category, s.opts.AdsPerCategory)
	if err != nil {
		return []*models.Listing{}, err
	}
	s.logger.Info("listing urls discovered", "category", category.Key, "count", len(urls))

	listings := make([]*models.Listing, 0, len(urls))
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return listings, err
		}

		if s.registry != nil {
			if adID := s.adIDOf(u); adID != "" && s.registry.Seen(ctx, adID) {
				s.logger.Debug("listing already processed, skipping", "url", u)
				continue
			}
		}

		result := s.builder.Build(ctx, u, category)
		if result.Failed() {
			if errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
				return listings, result.Err
			}
			s.recordError()
			s.metrics.IncError("build", "record")
		}
		listing := result.Listing

		if s.opts.DownloadImages && !result.Failed() {
			stats := s.downloader.DownloadAll(ctx, listing)
			s.addImages(stats.Downloaded)
			s.metrics.AddImagesDownloaded(stats.Downloaded)
			if stats.Failed > 0 {
				s.addErrors(stats.Failed)
				s.metrics.IncError("assets", "download")
			}
		}

		listings = append(listings, listing)
		s.metrics.IncRecordBuilt(category.Key)

		if s.registry != nil && listing.AdID != "" {
			s.registry.Mark(ctx, listing.AdID)
		}

		if s.persister != nil {
			if err := s.persister.SaveListing(ctx, category.Key, listing); err != nil {
				s.logger.Warn("record persistence failed", "ad_id", listing.AdID, "error", err)
				s.metrics.IncError("store", "save")
			}
		}
	}

	return listings, nil
}

// adIDOf derives the id before any browser navigation is spent, so known
// listings are skipped for free.
func (s *Session) adIDOf(u string) string {
	return parser.AdID(u)
}

func (s *Session) finalize(start time.Time, runErr error) *Report {
	duration := time.Since(start)

	s.mu.Lock()
	totalAds := 0
	for _, listings := range s.results {
		totalAds += len(listings)
	}
	payload := snapshot.Payload{
		Metadata: snapshot.Metadata{
			ScrapingDate:    start,
			TotalAds:        totalAds,
			TotalImages:     s.totalImages,
			Errors:          s.errorCount,
			DurationSeconds: duration.Seconds(),
			Parameters: snapshot.Parameters{
				AdsPerCategory: s.opts.AdsPerCategory,
				DownloadImages: s.opts.DownloadImages,
			},
		},
		AdsByCategory: s.snapshotResultsLocked(),
	}
	totalImages := s.totalImages
	errorCount := s.errorCount
	s.mu.Unlock()

	if err := s.sink.WriteFinal(payload); err != nil {
		s.logger.Error("final snapshot write failed", "error", err)
		errorCount++
	}

	report := &Report{
		SessionID:    s.id,
		StartedAt:    start,
		Duration:     duration,
		TotalRecords: totalAds,
		TotalImages:  totalImages,
		Errors:       errorCount,
		Interrupted:  runErr != nil,
	}

	s.logger.Info("session finished",
		"records", report.TotalRecords,
		"images", report.TotalImages,
		"errors", report.Errors,
		"duration", duration.Round(time.Second),
		"interrupted", report.Interrupted)

	return report
}

// snapshotResults copies the results map so sinks never see it mutate.
func (s *Session) snapshotResults() map[string][]*models.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotResultsLocked()
}

func (s *Session) snapshotResultsLocked() map[string][]*models.Listing {
	out := make(map[string][]*models.Listing, len(s.results))
	for key, listings := range s.results {
		copied := make([]*models.Listing, len(listings))
		copy(copied, listings)
		out[key] = copied
	}
	return out
}

func (s *Session) recordError() {
	s.mu.Lock()
	s.errorCount++
	s.mu.Unlock()
}

func (s *Session) addErrors(n int) {
	s.mu.Lock()
	s.errorCount += n
	s.mu.Unlock()
}

func (s *Session) addImages(n int) {
	s.mu.Lock()
	s.totalImages += n
	s.mu.Unlock()
}
