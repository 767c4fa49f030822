package snapshot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sidiya/voursa-scraper/internal/models"
)

// Metadata describes one finished (or interrupted) crawl session. Field
// names are part of the persisted contract.
type Metadata struct {
	ScrapingDate    time.Time  `json:"scraping_date"`
	TotalAds        int        `json:"total_ads"`
	TotalImages     int        `json:"total_images"`
	Errors          int        `json:"errors"`
	DurationSeconds float64    `json:"duration_seconds"`
	Parameters      Parameters `json:"parameters"`
}

type Parameters struct {
	AdsPerCategory int  `json:"ads_per_category"`
	DownloadImages bool `json:"download_images"`
}

// Payload is the final snapshot: session metadata plus all records keyed by
// category.
type Payload struct {
	Metadata      Metadata                     `json:"metadata"`
	AdsByCategory map[string][]*models.Listing `json:"ads_by_category"`
}

// Sink receives intermediate checkpoints after each category and the final
// payload once at session end.
type Sink interface {
	WriteCheckpoint(results map[string][]*models.Listing) error
	WriteFinal(payload Payload) error
}

// FileSink writes snapshots as indented JSON files under a data directory.
// Writes go through a temp file and a rename so a crash never leaves a
// truncated snapshot behind.
type FileSink struct {
	dir    string
	logger *slog.Logger
}

func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileSink{
		dir:    dir,
		logger: slog.Default().With("component", "snapshot"),
	}, nil
}

// WriteCheckpoint replaces the intermediate snapshot with the results so
// far. One stable filename: each checkpoint supersedes the previous one.
func (s *FileSink) WriteCheckpoint(results map[string][]*models.Listing) error {
	path := filepath.Join(s.dir, "voursa_intermediate.json")
	if err := s.writeAtomic(path, results); err != nil {
		return err
	}
	s.logger.Debug("checkpoint written", "path", path)
	return nil
}

// WriteFinal persists the enriched final payload under a timestamped name.
func (s *FileSink) WriteFinal(payload Payload) error {
	name := fmt.Sprintf("voursa_ads_%s.json", payload.Metadata.ScrapingDate.Format("20060102_150405"))
	path := filepath.Join(s.dir, name)
	if err := s.writeAtomic(path, payload); err != nil {
		return err
	}
	s.logger.Info("final snapshot written", "path", path)
	return nil
}

func (s *FileSink) writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
