package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawl pipeline. A nil
// *Metrics is valid and turns every recording call into a no-op.
type Metrics struct {
	Registry             *prometheus.Registry
	PagesFetchedTotal    *prometheus.CounterVec
	RecordsBuiltTotal    *prometheus.CounterVec
	ImagesDownloaded     prometheus.Counter
	ErrorsTotal          *prometheus.CounterVec
	PageFetchDuration    prometheus.Histogram
	CategoryDurationSecs *prometheus.HistogramVec
}

// New constructs and registers all collectors on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pagesFetched := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voursa_pages_fetched_total",
			Help: "Total pages fetched, by kind (listing or detail).",
		},
		[]string{"kind"},
	)
	recordsBuilt := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voursa_records_built_total",
			Help: "Total ad records built, by category key.",
		},
		[]string{"category"},
	)
	imagesDownloaded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voursa_images_downloaded_total",
			Help: "Total images downloaded to disk.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voursa_errors_total",
			Help: "Total errors, by pipeline stage and error label.",
		},
		[]string{"stage", "label"},
	)
	pageFetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voursa_page_fetch_duration_seconds",
			Help:    "Browser navigation latency per page.",
			Buckets: prometheus.DefBuckets,
		},
	)
	categoryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voursa_category_duration_seconds",
			Help:    "Wall-clock time spent crawling one category.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"category"},
	)

	registry.MustRegister(pagesFetched, recordsBuilt, imagesDownloaded, errorsTotal, pageFetchDuration, categoryDuration)

	return &Metrics{
		Registry:             registry,
		PagesFetchedTotal:    pagesFetched,
		RecordsBuiltTotal:    recordsBuilt,
		ImagesDownloaded:     imagesDownloaded,
		ErrorsTotal:          errorsTotal,
		PageFetchDuration:    pageFetchDuration,
		CategoryDurationSecs: categoryDuration,
	}
}

// IncPageFetched increments the fetched-pages counter for a page kind.
func (m *Metrics) IncPageFetched(kind string) {
	if m == nil {
		return
	}
	m.PagesFetchedTotal.WithLabelValues(kind).Inc()
}

// IncRecordBuilt increments the built-records counter for a category.
func (m *Metrics) IncRecordBuilt(category string) {
	if m == nil {
		return
	}
	m.RecordsBuiltTotal.WithLabelValues(category).Inc()
}

// AddImagesDownloaded adds to the downloaded-images counter.
func (m *Metrics) AddImagesDownloaded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ImagesDownloaded.Add(float64(n))
}

// IncError increments the errors counter for a stage and label.
func (m *Metrics) IncError(stage, label string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(stage, label).Inc()
}

// ObservePageFetch records one page navigation duration.
func (m *Metrics) ObservePageFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.PageFetchDuration.Observe(d.Seconds())
}

// ObserveCategory records how long one category crawl took.
func (m *Metrics) ObserveCategory(category string, d time.Duration) {
	if m == nil {
		return
	}
	m.CategoryDurationSecs.WithLabelValues(category).Observe(d.Seconds())
}
