package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options tunes the client beyond what the URL carries.
type Options struct {
	PoolSize    int
	DialTimeout time.Duration
}

// NewClient creates a new Redis client and verifies it with a ping.
func NewClient(ctx context.Context, redisURL string, extra ...Options) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	for _, o := range extra {
		if o.PoolSize > 0 {
			opts.PoolSize = o.PoolSize
		}
		if o.DialTimeout > 0 {
			opts.DialTimeout = o.DialTimeout
		}
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
