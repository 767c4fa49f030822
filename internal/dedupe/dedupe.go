package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "voursa:seen:"

// Registry remembers listing ids that were already processed. The in-process
// LRU always answers; Redis, when configured, extends the memory across runs.
// Everything here is best-effort: a Redis failure degrades to the LRU and
// never fails the crawl.
type Registry struct {
	cache  *lru.Cache[string, struct{}]
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(size int, rdb *redis.Client, ttl time.Duration) (*Registry, error) {
	if size < 1 {
		size = 1024
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}

	return &Registry{
		cache:  cache,
		rdb:    rdb,
		ttl:    ttl,
		logger: slog.Default().With("component", "dedupe"),
	}, nil
}

// Seen reports whether adID was processed before.
func (r *Registry) Seen(ctx context.Context, adID string) bool {
	if _, ok := r.cache.Get(adID); ok {
		return true
	}

	if r.rdb != nil {
		n, err := r.rdb.Exists(ctx, keyPrefix+adID).Result()
		if err != nil {
			r.logger.Warn("redis lookup failed", "ad_id", adID, "error", err)
			return false
		}
		if n > 0 {
			r.cache.Add(adID, struct{}{})
			return true
		}
	}

	return false
}

// Mark records adID as processed.
func (r *Registry) Mark(ctx context.Context, adID string) {
	r.cache.Add(adID, struct{}{})

	if r.rdb != nil {
		if err := r.rdb.Set(ctx, keyPrefix+adID, 1, r.ttl).Err(); err != nil {
			r.logger.Warn("redis mark failed", "ad_id", adID, "error", err)
		}
	}
}
