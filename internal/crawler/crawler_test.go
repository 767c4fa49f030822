package crawler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidiya/voursa-scraper/internal/models"
)

type fakeFetcher struct {
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Navigate(url string) (string, error) {
	f.calls = append(f.calls, url)
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("connection refused: %s", url)
	}
	return html, nil
}

var realEstate = models.Category{Key: "real_estate", DisplayName: "Immobilier"}

func newTestCrawler(t *testing.T, fetcher PageFetcher) *Crawler {
	t.Helper()
	c, err := New(fetcher, nil, Options{
		BaseURL:       "https://www.voursa.com/EN",
		ListingMarker: "/ads/",
		MaxPages:      10,
	})
	require.NoError(t, err)
	return c
}

func listingPage(nextEnabled bool, hrefs ...string) string {
	html := "<html><body>"
	for _, h := range hrefs {
		html += fmt.Sprintf(`<a href="%s">ad</a>`, h)
	}
	if nextEnabled {
		html += `<a rel="next" href="?page=2">next</a>`
	}
	return html + "</body></html>"
}

func TestDiscoverURLsSinglePageStopsWithoutNext(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.voursa.com/EN/categories/real_estate": listingPage(false,
			"/EN/ads/villa-1", "/EN/ads/villa-2"),
	}}
	c := newTestCrawler(t, fetcher)

	urls, err := c.DiscoverURLs(context.Background(), realEstate, 20)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://www.voursa.com/EN/ads/villa-1",
		"https://www.voursa.com/EN/ads/villa-2",
	}, urls)
	// page 2 is never requested
	assert.Equal(t, []string{"https://www.voursa.com/EN/categories/real_estate"}, fetcher.calls)
}

func TestDiscoverURLsTruncatesAtTarget(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.voursa.com/EN/categories/real_estate": listingPage(true,
			"/EN/ads/a-1", "/EN/ads/a-2", "/EN/ads/a-3", "/EN/ads/a-4"),
	}}
	c := newTestCrawler(t, fetcher)

	urls, err := c.DiscoverURLs(context.Background(), realEstate, 3)
	require.NoError(t, err)

	assert.Len(t, urls, 3)
	assert.Len(t, fetcher.calls, 1)
}

func TestDiscoverURLsDedupAcrossPages(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.voursa.com/EN/categories/real_estate": listingPage(true,
			"/EN/ads/a-1", "/EN/ads/a-2"),
		"https://www.voursa.com/EN/categories/real_estate?page=2": listingPage(true,
			"/EN/ads/a-2", "/EN/ads/a-3"),
		// page 3 repeats page 2 entirely: no new links, soft stop
		"https://www.voursa.com/EN/categories/real_estate?page=3": listingPage(true,
			"/EN/ads/a-2", "/EN/ads/a-3"),
	}}
	c := newTestCrawler(t, fetcher)

	urls, err := c.DiscoverURLs(context.Background(), realEstate, 20)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://www.voursa.com/EN/ads/a-1",
		"https://www.voursa.com/EN/ads/a-2",
		"https://www.voursa.com/EN/ads/a-3",
	}, urls)
	assert.Len(t, fetcher.calls, 3)
}

func TestDiscoverURLsPageFailureIsSoftStop(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.voursa.com/EN/categories/real_estate": listingPage(true,
			"/EN/ads/a-1"),
		// page 2 deliberately missing
	}}
	c := newTestCrawler(t, fetcher)

	urls, err := c.DiscoverURLs(context.Background(), realEstate, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.voursa.com/EN/ads/a-1"}, urls)
}

func TestDiscoverURLsIgnoresNonListingLinks(t *testing.T) {
	html := `<html><body>
		<div class="ad-item"><a href="/EN/ads/car-9">car</a></div>
		<div class="ad-item"><a href="/EN/about">about</a></div>
	</body></html>`
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.voursa.com/EN/categories/real_estate": html,
	}}
	c := newTestCrawler(t, fetcher)

	urls, err := c.DiscoverURLs(context.Background(), realEstate, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.voursa.com/EN/ads/car-9"}, urls)
}

func TestDiscoverURLsDisabledNextStops(t *testing.T) {
	html := `<html><body>
		<a href="/EN/ads/a-1">ad</a>
		<a rel="next" class="disabled" href="?page=2">next</a>
	</body></html>`
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.voursa.com/EN/categories/real_estate": html,
	}}
	c := newTestCrawler(t, fetcher)

	urls, err := c.DiscoverURLs(context.Background(), realEstate, 20)
	require.NoError(t, err)
	assert.Len(t, urls, 1)
	assert.Len(t, fetcher.calls, 1)
}

func TestDiscoverURLsZeroTarget(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.voursa.com/EN/categories/real_estate": listingPage(false, "/EN/ads/a-1"),
	}}
	c := newTestCrawler(t, fetcher)

	urls, err := c.DiscoverURLs(context.Background(), realEstate, 0)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestDiscoverURLsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{pages: map[string]string{}}
	c := newTestCrawler(t, fetcher)

	urls, err := c.DiscoverURLs(ctx, realEstate, 20)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, urls)
	assert.Empty(t, fetcher.calls)
}
