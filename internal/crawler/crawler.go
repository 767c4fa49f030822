package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sidiya/voursa-scraper/internal/models"
	"github.com/sidiya/voursa-scraper/internal/ratelimit"
)

// PageFetcher returns the rendered HTML of a URL. Implemented by a browser
// session; navigation on one fetcher is serialized.
type PageFetcher interface {
	Navigate(url string) (string, error)
}

// Link-selector strategies, most specific first. A page uses the first
// strategy that matches at least one anchor; strategies are never merged so
// navigation and promotional links don't mix into the result.
var linkStrategies = []string{
	"a[href*='/ads/']",
	".ad-item a",
	".listing-item a",
	`[class*="ad-link"]`,
	`[class*="listing-link"]`,
}

var nextPageSelector = `a[rel='next'], .pagination-next, [class*="next-page"]`

type Options struct {
	BaseURL       string
	ListingMarker string
	MaxPages      int
}

// Crawler walks a category's listing pages and collects unique detail-page
// URLs until the target count or an exhaustion signal.
type Crawler struct {
	fetcher PageFetcher
	limiter ratelimit.RateLimiter
	opts    Options
	base    *url.URL
	logger  *slog.Logger
}

func New(fetcher PageFetcher, limiter ratelimit.RateLimiter, opts Options) (*Crawler, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if opts.ListingMarker == "" {
		opts.ListingMarker = "/ads/"
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 50
	}

	return &Crawler{
		fetcher: fetcher,
		limiter: limiter,
		opts:    opts,
		base:    base,
		logger:  slog.Default().With("component", "crawler"),
	}, nil
}

// CategoryURL builds the listing URL for a category page.
func (c *Crawler) CategoryURL(category models.Category, page int) string {
	u := fmt.Sprintf("%s/categories/%s", strings.TrimRight(c.opts.BaseURL, "/"), category.Key)
	if page > 1 {
		u = fmt.Sprintf("%s?page=%d", u, page)
	}
	return u
}

// DiscoverURLs paginates through a category and returns up to targetCount
// unique detail-page URLs in discovery order. A page fetch failure is a soft
// stop: whatever was collected so far is returned.
func (c *Crawler) DiscoverURLs(ctx context.Context, category models.Category, targetCount int) ([]string, error) {
	urls := make([]string, 0, targetCount)
	seen := make(map[string]struct{}, targetCount)

	for page := 1; page <= c.opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return urls, err
		}

		if page > 1 && c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return urls, err
			}
		}

		pageURL := c.CategoryURL(category, page)
		c.logger.Info("scraping listing page", "category", category.Key, "page", page, "url", pageURL)

		html, err := c.fetcher.Navigate(pageURL)
		if err != nil {
			c.logger.Warn("listing page fetch failed, stopping pagination",
				"category", category.Key, "page", page, "error", err)
			return urls, nil
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			c.logger.Warn("listing page parse failed, stopping pagination",
				"category", category.Key, "page", page, "error", err)
			return urls, nil
		}

		added := c.collectPageLinks(doc, seen, &urls, targetCount)
		if len(urls) >= targetCount {
			return urls[:targetCount], nil
		}

		if added == 0 {
			c.logger.Warn("no new listings found on page", "category", category.Key, "page", page)
			return urls, nil
		}

		if !hasNextPage(doc) {
			c.logger.Info("last page reached", "category", category.Key, "page", page)
			return urls, nil
		}
	}

	return urls, nil
}

// collectPageLinks applies the strategies in order and appends new listing
// URLs from the first strategy that matches anything. Returns how many URLs
// were new on this page.
func (c *Crawler) collectPageLinks(doc *goquery.Document, seen map[string]struct{}, urls *[]string, targetCount int) int {
	added := 0

	for _, strategy := range linkStrategies {
		links := doc.Find(strategy)
		if links.Length() == 0 {
			continue
		}

		links.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, ok := s.Attr("href")
			if !ok || !strings.Contains(href, c.opts.ListingMarker) {
				return true
			}

			resolved := c.resolve(href)
			if _, dup := seen[resolved]; dup {
				return true
			}
			seen[resolved] = struct{}{}
			*urls = append(*urls, resolved)
			added++

			return len(*urls) < targetCount
		})

		break
	}

	return added
}

func (c *Crawler) resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return c.base.ResolveReference(ref).String()
}

func hasNextPage(doc *goquery.Document) bool {
	next := doc.Find(nextPageSelector).First()
	if next.Length() == 0 {
		return false
	}
	if _, disabled := next.Attr("disabled"); disabled {
		return false
	}
	if v, ok := next.Attr("aria-disabled"); ok && v == "true" {
		return false
	}
	return !next.HasClass("disabled")
}
