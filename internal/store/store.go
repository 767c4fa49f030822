package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sidiya/voursa-scraper/internal/models"
)

// Store persists listing records to Postgres. It is an optional sink on top
// of the JSON snapshots; the crawl succeeds without it.
type Store struct {
	pool *pgxpool.Pool
}

type Config struct {
	DSN      string
	MaxConns int32
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the listings table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS listings (
			ad_id         TEXT PRIMARY KEY,
			url           TEXT NOT NULL,
			category_key  TEXT NOT NULL,
			title         TEXT NOT NULL DEFAULT '',
			price         TEXT NOT NULL DEFAULT '',
			currency      TEXT NOT NULL DEFAULT '',
			location      TEXT NOT NULL DEFAULT '',
			payload       JSONB NOT NULL,
			scraped_at    TIMESTAMPTZ NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SaveListing upserts one record keyed by its ad id. Re-scraping a listing
// refreshes the stored payload instead of duplicating the row.
func (s *Store) SaveListing(ctx context.Context, categoryKey string, listing *models.Listing) error {
	payload, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}

	const query = `
		INSERT INTO listings (ad_id, url, category_key, title, price, currency, location, payload, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ad_id) DO UPDATE SET
			url = EXCLUDED.url,
			category_key = EXCLUDED.category_key,
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			location = EXCLUDED.location,
			payload = EXCLUDED.payload,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = now()`

	_, err = s.pool.Exec(ctx, query,
		listing.AdID, listing.URL, categoryKey, listing.Title,
		listing.Price, listing.Currency, listing.Location, payload, listing.ScrapingDate,
	)
	if err != nil {
		return fmt.Errorf("failed to save listing %s: %w", listing.AdID, err)
	}
	return nil
}

// SaveCategory upserts a whole category result.
func (s *Store) SaveCategory(ctx context.Context, categoryKey string, listings []*models.Listing) error {
	for _, listing := range listings {
		if err := s.SaveListing(ctx, categoryKey, listing); err != nil {
			return err
		}
	}
	return nil
}

// CountByCategory returns how many listings are stored per category key.
func (s *Store) CountByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT category_key, COUNT(*) FROM listings GROUP BY category_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}
