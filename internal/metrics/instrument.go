package metrics

import (
	"time"

	"github.com/sidiya/voursa-scraper/internal/crawler"
)

// InstrumentedFetcher counts and times page navigations on behalf of the
// wrapped fetcher. Kind distinguishes listing pages from detail pages.
type InstrumentedFetcher struct {
	next    crawler.PageFetcher
	kind    string
	metrics *Metrics
}

func InstrumentFetcher(next crawler.PageFetcher, kind string, m *Metrics) *InstrumentedFetcher {
	return &InstrumentedFetcher{next: next, kind: kind, metrics: m}
}

func (f *InstrumentedFetcher) Navigate(url string) (string, error) {
	start := time.Now()
	html, err := f.next.Navigate(url)
	f.metrics.ObservePageFetch(time.Since(start))
	if err != nil {
		f.metrics.IncError("fetch", f.kind)
	} else {
		f.metrics.IncPageFetched(f.kind)
	}
	return html, err
}
