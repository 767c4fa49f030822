package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidiya/voursa-scraper/internal/assets"
	"github.com/sidiya/voursa-scraper/internal/builder"
	"github.com/sidiya/voursa-scraper/internal/models"
	"github.com/sidiya/voursa-scraper/internal/snapshot"
)

type fakeDiscoverer struct {
	urls   map[string][]string
	errFor map[string]error
	onCall func(category models.Category)
}

func (f *fakeDiscoverer) DiscoverURLs(ctx context.Context, category models.Category, targetCount int) ([]string, error) {
	if f.onCall != nil {
		f.onCall(category)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.errFor[category.Key]; err != nil {
		return nil, err
	}
	urls := f.urls[category.Key]
	if len(urls) > targetCount {
		urls = urls[:targetCount]
	}
	return urls, nil
}

type fakeBuilder struct {
	mu     sync.Mutex
	built  []string
	failOn map[string]error
}

func (f *fakeBuilder) Build(ctx context.Context, url string, category models.Category) builder.Result {
	f.mu.Lock()
	f.built = append(f.built, url)
	f.mu.Unlock()

	listing := models.NewListing(url, url)
	listing.Category = category.DisplayName
	if err := f.failOn[url]; err != nil {
		return builder.Result{Listing: listing, Err: err}
	}
	listing.Title = "listing for " + url
	listing.Images = []models.ImageRef{{URL: url + "/img.jpg"}}
	return builder.Result{Listing: listing}
}

type fakeDownloader struct {
	stats assets.Stats
	calls int
}

func (f *fakeDownloader) DownloadAll(ctx context.Context, listing *models.Listing) assets.Stats {
	f.calls++
	return f.stats
}

type recordingSink struct {
	mu          sync.Mutex
	checkpoints []map[string][]*models.Listing
	finals      []snapshot.Payload
}

func (r *recordingSink) WriteCheckpoint(results map[string][]*models.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkpoints = append(r.checkpoints, results)
	return nil
}

func (r *recordingSink) WriteFinal(payload snapshot.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finals = append(r.finals, payload)
	return nil
}

type fakeRegistry struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *fakeRegistry) Seen(ctx context.Context, adID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[adID]
}

func (f *fakeRegistry) Mark(ctx context.Context, adID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[adID] = true
}

func twoCategories() []models.Category {
	return []models.Category{
		{Key: "real_estate", DisplayName: "Immobilier"},
		{Key: "vehicles", DisplayName: "Véhicules"},
	}
}

func TestRunCheckpointsAfterEveryCategory(t *testing.T) {
	discoverer := &fakeDiscoverer{urls: map[string][]string{
		"real_estate": {"https://www.voursa.com/ads/villa-100"},
		"vehicles":    {"https://www.voursa.com/ads/toyota-200"},
	}}
	b := &fakeBuilder{}
	sink := &recordingSink{}

	s := New(discoverer, b, &fakeDownloader{}, sink, Options{
		Categories:     twoCategories(),
		AdsPerCategory: 5,
	})

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.checkpoints, 2)
	assert.Len(t, sink.checkpoints[0], 1)
	assert.Len(t, sink.checkpoints[1], 2)
	assert.Contains(t, sink.checkpoints[1], "real_estate")
	assert.Contains(t, sink.checkpoints[1], "vehicles")

	require.Len(t, sink.finals, 1)
	assert.Equal(t, 2, sink.finals[0].Metadata.TotalAds)
	assert.Equal(t, 2, report.TotalRecords)
	assert.False(t, report.Interrupted)
	assert.NotEmpty(t, report.SessionID)
}

func TestRunCategoryFailureDoesNotStopSession(t *testing.T) {
	discoverer := &fakeDiscoverer{
		urls: map[string][]string{
			"vehicles": {"https://www.voursa.com/ads/toyota-200"},
		},
		errFor: map[string]error{
			"real_estate": errors.New("listing page unreachable"),
		},
	}
	sink := &recordingSink{}

	s := New(discoverer, &fakeBuilder{}, &fakeDownloader{}, sink, Options{
		Categories:     twoCategories(),
		AdsPerCategory: 5,
	})

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.finals, 1)
	payload := sink.finals[0]
	assert.Empty(t, payload.AdsByCategory["real_estate"])
	assert.Len(t, payload.AdsByCategory["vehicles"], 1)
	assert.Equal(t, 1, report.TotalRecords)
	assert.Equal(t, 1, report.Errors)
}

func TestRunCancellationStillWritesFinalSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	discoverer := &fakeDiscoverer{urls: map[string][]string{
		"real_estate": {"https://www.voursa.com/ads/villa-100"},
		"vehicles":    {"https://www.voursa.com/ads/toyota-200"},
	}}
	discoverer.onCall = func(category models.Category) {
		if category.Key == "vehicles" {
			cancel()
		}
	}
	sink := &recordingSink{}

	s := New(discoverer, &fakeBuilder{}, &fakeDownloader{}, sink, Options{
		Categories:     twoCategories(),
		AdsPerCategory: 5,
	})

	report, err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, sink.finals, 1)
	assert.Len(t, sink.finals[0].AdsByCategory["real_estate"], 1)
	assert.True(t, report.Interrupted)
	assert.Equal(t, 1, report.TotalRecords)
}

func TestRunSkipsAlreadySeenListings(t *testing.T) {
	seenURL := "https://www.voursa.com/ads/villa-100"
	freshURL := "https://www.voursa.com/ads/appartement-101"

	discoverer := &fakeDiscoverer{urls: map[string][]string{
		"real_estate": {seenURL, freshURL},
	}}
	b := &fakeBuilder{}
	registry := &fakeRegistry{seen: map[string]bool{"100": true}}
	sink := &recordingSink{}

	s := New(discoverer, b, &fakeDownloader{}, sink, Options{
		Categories:     []models.Category{{Key: "real_estate", DisplayName: "Immobilier"}},
		AdsPerCategory: 5,
	}).WithRegistry(registry)

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{freshURL}, b.built)
	assert.Equal(t, 1, report.TotalRecords)
	assert.True(t, registry.seen[freshURL], "fresh listing must be marked after building")
}

func TestRunBuildFailureKeepsSkeletonRecord(t *testing.T) {
	badURL := "https://www.voursa.com/ads/broken-300"
	discoverer := &fakeDiscoverer{urls: map[string][]string{
		"real_estate": {badURL},
	}}
	b := &fakeBuilder{failOn: map[string]error{badURL: fmt.Errorf("navigation timeout")}}
	downloader := &fakeDownloader{}
	sink := &recordingSink{}

	s := New(discoverer, b, downloader, sink, Options{
		Categories:     []models.Category{{Key: "real_estate", DisplayName: "Immobilier"}},
		AdsPerCategory: 5,
		DownloadImages: true,
	})

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.finals, 1)
	records := sink.finals[0].AdsByCategory["real_estate"]
	require.Len(t, records, 1)
	assert.Equal(t, badURL, records[0].URL)
	assert.Equal(t, 1, report.Errors)
	assert.Zero(t, downloader.calls, "failed builds must not trigger image downloads")
}

func TestRunCountsDownloadedImages(t *testing.T) {
	discoverer := &fakeDiscoverer{urls: map[string][]string{
		"real_estate": {"https://www.voursa.com/ads/villa-100"},
	}}
	downloader := &fakeDownloader{stats: assets.Stats{Downloaded: 3, Failed: 1}}
	sink := &recordingSink{}

	s := New(discoverer, &fakeBuilder{}, downloader, sink, Options{
		Categories:     []models.Category{{Key: "real_estate", DisplayName: "Immobilier"}},
		AdsPerCategory: 5,
		DownloadImages: true,
	})

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, downloader.calls)
	assert.Equal(t, 3, report.TotalImages)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 3, sink.finals[0].Metadata.TotalImages)
}
