// Package cache keeps a hot set of known blob fingerprints in Redis so
// repeat uploads skip the relational round-trip. It is strictly an
// accelerator: a miss falls through to Postgres, and Redis being down only
// costs speed, never correctness.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "waypost:fp:"
	seenTTL   = 24 * time.Hour
)

// FingerprintCache is a Redis-backed membership cache of stored
// fingerprints.
type FingerprintCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// New connects to Redis and verifies the connection.
func New(redisURL string, logger *zap.Logger) (*FingerprintCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &FingerprintCache{rdb: rdb, logger: logger}, nil
}

// Seen reports whether the fingerprint is known to exist. Any Redis error
// reads as a miss.
func (c *FingerprintCache) Seen(ctx context.Context, fingerprint string) bool {
	n, err := c.rdb.Exists(ctx, keyPrefix+fingerprint).Result()
	if err != nil {
		c.logger.Debug("fingerprint cache read failed", zap.Error(err))
		return false
	}
	return n == 1
}

// MarkSeen records that a blob with this fingerprint now exists. Failures
// are logged and swallowed; the relational store remains authoritative.
func (c *FingerprintCache) MarkSeen(ctx context.Context, fingerprint string) {
	if err := c.rdb.Set(ctx, keyPrefix+fingerprint, 1, seenTTL).Err(); err != nil {
		c.logger.Debug("fingerprint cache write failed", zap.Error(err))
	}
}

// Close shuts down the Redis connection.
func (c *FingerprintCache) Close() error {
	return c.rdb.Close()
}
