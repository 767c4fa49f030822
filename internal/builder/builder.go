package builder

import (
	"context"
	"log/slog"

	"github.com/sidiya/voursa-scraper/internal/crawler"
	"github.com/sidiya/voursa-scraper/internal/models"
	"github.com/sidiya/voursa-scraper/internal/parser"
)

// Result carries the built record plus the failure, if any. The listing is
// always non-nil: a failed build still yields a skeleton record so one bad
// page never drops its salvageable fields or its slot in the output.
type Result struct {
	Listing *models.Listing
	Err     error
}

func (r Result) Failed() bool {
	return r.Err != nil
}

// Builder turns one detail-page URL into a listing record.
type Builder struct {
	fetcher crawler.PageFetcher
	parser  *parser.Parser
	logger  *slog.Logger
}

func New(fetcher crawler.PageFetcher, p *parser.Parser) *Builder {
	return &Builder{
		fetcher: fetcher,
		parser:  p,
		logger:  slog.Default().With("component", "builder"),
	}
}

// Build fetches and extracts one listing. It never panics and never returns
// a nil listing; extraction misses inside the page are already absorbed by
// the parser, and fetch or parse failures degrade to a skeleton record with
// the error attached for counting.
func (b *Builder) Build(ctx context.Context, url string, category models.Category) Result {
	listing := models.NewListing(url, parser.AdID(url))
	listing.Category = category.DisplayName

	if err := ctx.Err(); err != nil {
		return Result{Listing: listing, Err: err}
	}

	html, err := b.fetcher.Navigate(url)
	if err != nil {
		b.logger.Error("detail page fetch failed", "url", url, "error", err)
		return Result{Listing: listing, Err: err}
	}

	parsed, err := b.parser.ParseListingPage(html, url)
	if err != nil {
		b.logger.Error("detail page parse failed", "url", url, "error", err)
		return Result{Listing: listing, Err: err}
	}

	// the crawl context knows the category; heuristics only fill the rest
	parsed.Category = category.DisplayName
	return Result{Listing: parsed}
}
