// Package redis creates the go-redis client used by the login throttle.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

// NewClient returns a client for redisURL (e.g. redis://localhost:6379/0)
// after verifying connectivity.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("redis: empty url")
	}
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parsing url: %w", err)
	}

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return client, nil
}
