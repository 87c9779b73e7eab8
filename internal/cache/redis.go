package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talentgraph/talentgraph-go/internal/config"
	"github.com/talentgraph/talentgraph-go/internal/logging"
)

// seenTTL bounds how long a username stays marked as seen. It matches the
// discovery freshness window so a re-crawl after staleness re-touches rows.
const seenTTL = 30 * 24 * time.Hour

// SeenCache is a best-effort Redis set of usernames already discovered in
// recent runs. A cache miss only costs an extra upsert, so every method
// degrades to "not seen" on connection trouble rather than failing the crawl.
type SeenCache struct {
	client *redis.Client
	logger *logging.Logger
}

// NewSeenCache connects to Redis. Returns an error only when the initial
// ping fails; callers treat that as "run without the cache".
func NewSeenCache(cfg config.RedisConfig, logger *logging.Logger) (*SeenCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &SeenCache{client: client, logger: logger}, nil
}

func key(username string) string {
	return "talentgraph:seen:" + username
}

// Seen reports whether a username was marked in a recent run.
func (c *SeenCache) Seen(ctx context.Context, username string) bool {
	n, err := c.client.Exists(ctx, key(username)).Result()
	if err != nil {
		c.logger.Debug("seen-cache read failed", "username", username, "error", err)
		return false
	}
	return n > 0
}

// Mark records a username as seen with the standard TTL.
func (c *SeenCache) Mark(ctx context.Context, username string) {
	if err := c.client.Set(ctx, key(username), "1", seenTTL).Err(); err != nil {
		c.logger.Debug("seen-cache write failed", "username", username, "error", err)
	}
}

// Close releases the connection pool.
func (c *SeenCache) Close() error { return c.client.Close() }
