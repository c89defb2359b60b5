package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/polaris-foundation/polaris-locations-api/config"
)

// Client wraps go-redis for the ancestor chain cache.
type Client struct {
	rdb    *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewClient connects and pings redis.
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	logger.Info("redis connected", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, ttl: cfg.ChainTTL, logger: logger}, nil
}

// ── ancestor chains ──
//
// Chains are stored under the current tree generation. Bumping the
// generation orphans every cached chain at once; orphans expire by TTL.

const (
	generationKey = "location:tree:gen"
	chainPrefix   = "location:ancestors:"
)

func chainKey(gen int64, uuid string) string {
	return chainPrefix + strconv.FormatInt(gen, 10) + ":" + uuid
}

func (c *Client) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return gen, err
}

// GetChains returns the current generation and the cached encoded chains
// for uuids. Misses are absent from the map. The generation must be handed
// back to PutChains so chains read before an invalidation are not stored
// under the new generation.
func (c *Client) GetChains(ctx context.Context, uuids []string) (int64, map[string][]byte, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return 0, nil, err
	}

	out := make(map[string][]byte, len(uuids))
	if len(uuids) == 0 {
		return gen, out, nil
	}

	keys := make([]string, len(uuids))
	for i, id := range uuids {
		keys[i] = chainKey(gen, id)
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, nil, err
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[uuids[i]] = []byte(s)
		}
	}
	return gen, out, nil
}

// PutChains stores encoded chains under generation gen.
func (c *Client) PutChains(ctx context.Context, gen int64, chains map[string][]byte) error {
	if len(chains) == 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	for id, raw := range chains {
		pipe.Set(ctx, chainKey(gen, id), raw, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Invalidate moves the cache to a new generation.
func (c *Client) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, generationKey).Err()
}

// ── rate limiting ──

// CheckRateLimit counts a request against key in a fixed window and reports
// whether it is within limit.
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return incr.Val() <= int64(limit), nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
