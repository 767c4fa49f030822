package builder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidiya/voursa-scraper/internal/models"
	"github.com/sidiya/voursa-scraper/internal/parser"
)

type stubFetcher struct {
	html string
	err  error
}

func (s *stubFetcher) Navigate(string) (string, error) {
	return s.html, s.err
}

var vehicles = models.Category{Key: "vehicles", DisplayName: "Véhicules"}

func newBuilder(t *testing.T, fetcher *stubFetcher) *Builder {
	t.Helper()
	p, err := parser.New("https://www.voursa.com/EN", "MRU")
	require.NoError(t, err)
	return New(fetcher, p)
}

func TestBuildFullPage(t *testing.T) {
	html := `<html><body>
		<h1>Toyota Hilux 2019</h1>
		<div class="price">850 000 MRU</div>
		<div class="description">Pick-up en très bon état, 95000 km</div>
		<div class="location">Nouakchott</div>
		<div class="gallery"><img src="/uploads/hilux.jpg"></div>
		<a href="tel:+22233445566" class="phone"></a>
	</body></html>`

	b := newBuilder(t, &stubFetcher{html: html})
	result := b.Build(context.Background(), "https://www.voursa.com/EN/ads/toyota-hilux-4411", vehicles)

	require.False(t, result.Failed())
	listing := result.Listing
	assert.Equal(t, "4411", listing.AdID)
	assert.Equal(t, "Toyota Hilux 2019", listing.Title)
	assert.Equal(t, "850000", listing.Price)
	assert.Equal(t, "MRU", listing.Currency)
	assert.Equal(t, "Véhicules", listing.Category)
	assert.Equal(t, "+22233445566", listing.Seller.Phone)
	assert.Equal(t, "95000", listing.Details["mileage"])
	require.Len(t, listing.Images, 1)
}

func TestBuildMissingDescriptionIsNotAnError(t *testing.T) {
	html := `<html><body>
		<h1>Armoire en bois</h1>
		<div class="price">5000 MRU</div>
	</body></html>`

	b := newBuilder(t, &stubFetcher{html: html})
	result := b.Build(context.Background(), "https://www.voursa.com/EN/ads/armoire-77", vehicles)

	require.False(t, result.Failed())
	assert.Empty(t, result.Listing.Description)
	assert.Equal(t, "Armoire en bois", result.Listing.Title)
	assert.Equal(t, "5000", result.Listing.Price)
}

func TestBuildFetchFailureYieldsSkeleton(t *testing.T) {
	fetchErr := errors.New("net timeout")
	b := newBuilder(t, &stubFetcher{err: fetchErr})

	result := b.Build(context.Background(), "https://www.voursa.com/EN/ads/ghost-1234", vehicles)

	assert.True(t, result.Failed())
	assert.ErrorIs(t, result.Err, fetchErr)
	require.NotNil(t, result.Listing)
	assert.Equal(t, "1234", result.Listing.AdID)
	assert.Equal(t, "Véhicules", result.Listing.Category)
	assert.Empty(t, result.Listing.Title)
}

func TestBuildCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := newBuilder(t, &stubFetcher{html: "<html></html>"})
	result := b.Build(ctx, "https://www.voursa.com/EN/ads/x-1", vehicles)

	assert.True(t, result.Failed())
	assert.ErrorIs(t, result.Err, context.Canceled)
	require.NotNil(t, result.Listing)
}
