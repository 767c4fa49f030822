package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidiya/voursa-scraper/internal/models"
)

func TestWriteCheckpointOverwrites(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	first := map[string][]*models.Listing{
		"vehicles": {models.NewListing("https://x/ads/a-1", "1")},
	}
	require.NoError(t, sink.WriteCheckpoint(first))

	second := map[string][]*models.Listing{
		"vehicles":    {models.NewListing("https://x/ads/a-1", "1")},
		"real_estate": {models.NewListing("https://x/ads/b-2", "2")},
	}
	require.NoError(t, sink.WriteCheckpoint(second))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, "voursa_intermediate.json"))
	require.NoError(t, err)

	var decoded map[string][]*models.Listing
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 2)
	assert.Equal(t, "2", decoded["real_estate"][0].AdID)
}

func TestWriteFinalPayloadShape(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	scrapedAt := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	listing := models.NewListing("https://x/ads/villa-99", "99")
	listing.Title = "Villa"
	listing.Images = append(listing.Images, models.ImageRef{URL: "https://x/u/1.jpg", LocalPath: "images/99/99_000.jpg"})

	payload := Payload{
		Metadata: Metadata{
			ScrapingDate:    scrapedAt,
			TotalAds:        1,
			TotalImages:     1,
			Errors:          0,
			DurationSeconds: 42.5,
			Parameters:      Parameters{AdsPerCategory: 20, DownloadImages: true},
		},
		AdsByCategory: map[string][]*models.Listing{
			"real_estate": {listing},
		},
	}
	require.NoError(t, sink.WriteFinal(payload))

	data, err := os.ReadFile(filepath.Join(dir, "voursa_ads_20250314_093000.json"))
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "metadata")
	require.Contains(t, decoded, "ads_by_category")

	var meta map[string]any
	require.NoError(t, json.Unmarshal(decoded["metadata"], &meta))
	assert.EqualValues(t, 1, meta["total_ads"])
	assert.EqualValues(t, 42.5, meta["duration_seconds"])

	// record field names are the persisted contract
	var byCategory map[string][]map[string]any
	require.NoError(t, json.Unmarshal(decoded["ads_by_category"], &byCategory))
	record := byCategory["real_estate"][0]
	for _, field := range []string{"url", "ad_id", "scraping_date", "title", "price",
		"currency", "description", "location", "category", "subcategory",
		"images", "details", "seller", "metadata"} {
		assert.Contains(t, record, field)
	}
}
