package assets

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sidiya/voursa-scraper/internal/fetch"
	"github.com/sidiya/voursa-scraper/internal/models"
	"github.com/sidiya/voursa-scraper/internal/ratelimit"
)

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

const fallbackExtension = ".jpg"

// Stats summarizes one DownloadAll pass.
type Stats struct {
	Downloaded int
	Failed     int
}

// Fetcher downloads the image set of a listing into a per-listing directory.
// Paths are a pure function of listing id and image index, so re-running a
// download overwrites files instead of duplicating them.
type Fetcher struct {
	getter  fetch.Getter
	limiter *ratelimit.AdaptiveRateLimiter
	baseDir string
	workers int
	logger  *slog.Logger
}

func New(getter fetch.Getter, limiter *ratelimit.AdaptiveRateLimiter, baseDir string, workers int) *Fetcher {
	if workers < 1 {
		workers = 1
	}
	return &Fetcher{
		getter:  getter,
		limiter: limiter,
		baseDir: baseDir,
		workers: workers,
		logger:  slog.Default().With("component", "assets"),
	}
}

// LocalPath is the deterministic destination for image idx of a listing.
func (f *Fetcher) LocalPath(adID string, idx int, remoteURL string) string {
	ext := fallbackExtension
	if u, err := url.Parse(remoteURL); err == nil {
		if e := strings.ToLower(path.Ext(u.Path)); e != "" {
			if _, ok := allowedExtensions[e]; ok {
				ext = e
			}
		}
	}
	return filepath.Join(f.baseDir, adID, fmt.Sprintf("%s_%03d%s", adID, idx, ext))
}

// DownloadAll fetches every image of the listing and fills LocalPath in
// place. Each image is independent: one failure is logged and counted while
// its siblings still download.
func (f *Fetcher) DownloadAll(ctx context.Context, listing *models.Listing) Stats {
	if len(listing.Images) == 0 {
		return Stats{}
	}

	dir := filepath.Join(f.baseDir, listing.AdID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.logger.Error("cannot create asset directory", "dir", dir, "error", err)
		return Stats{Failed: len(listing.Images)}
	}

	jobs := make(chan int, len(listing.Images))
	for idx := range listing.Images {
		jobs <- idx
	}
	close(jobs)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		stats Stats
	)

	workers := f.workers
	if workers > len(listing.Images) {
		workers = len(listing.Images)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				err := f.downloadOne(ctx, listing, idx)

				mu.Lock()
				if err != nil {
					stats.Failed++
				} else {
					stats.Downloaded++
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return stats
}

func (f *Fetcher) downloadOne(ctx context.Context, listing *models.Listing, idx int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	img := &listing.Images[idx]
	dest := f.LocalPath(listing.AdID, idx, img.URL)

	body, err := f.getter.Get(ctx, img.URL)
	if err != nil {
		if f.limiter != nil {
			f.limiter.RecordError()
		}
		f.logger.Error("image download failed",
			"ad_id", listing.AdID, "url", img.URL, "label", fetch.Label(err), "error", err)
		return err
	}

	if err := os.WriteFile(dest, body, 0o644); err != nil {
		f.logger.Error("image write failed", "ad_id", listing.AdID, "path", dest, "error", err)
		return err
	}

	if f.limiter != nil {
		f.limiter.RecordSuccess()
	}
	img.LocalPath = dest
	f.logger.Debug("image downloaded", "ad_id", listing.AdID, "path", dest)
	return nil
}
