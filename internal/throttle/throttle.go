// Package throttle limits failed login attempts with Redis fixed-window
// counters, keyed by username and by client IP.
//
// A window opens at the first failure (INCR, then EXPIRE when the count is
// 1) and closes when the key expires. Once either counter reaches the
// attempt budget, Check rejects further logins until the window ends.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrThrottled means the attempt budget for the window is spent.
	ErrThrottled = errors.New("too many failed login attempts")
	// ErrUnavailable wraps Redis failures. Callers decide whether to fail open.
	ErrUnavailable = errors.New("throttle store unavailable")
)

const keyPrefix = "shopgate:login:"

// Config holds the attempt budget and window length.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// RedisLimiter implements the login throttle on Redis.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

// NewRedisLimiter creates a limiter. Non-positive values fall back to five
// attempts per five minutes.
func NewRedisLimiter(client redis.UniversalClient, cfg Config) *RedisLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}
	return &RedisLimiter{redis: client, config: cfg}
}

// Check returns ErrThrottled when either the username or the ip counter
// has reached the budget. An empty ip skips the per-IP check.
func (l *RedisLimiter) Check(ctx context.Context, username, ip string) error {
	keys := l.keys(username, ip)
	vals, err := l.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
			continue
		}
		if n >= l.config.MaxAttempts {
			return ErrThrottled
		}
	}
	return nil
}

// RecordFailure counts one failed attempt against username and ip.
func (l *RedisLimiter) RecordFailure(ctx context.Context, username, ip string) error {
	for _, key := range l.keys(username, ip) {
		if err := l.incrementWithTTL(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the username counter after a successful login. The IP
// counter keeps running until its window closes.
func (l *RedisLimiter) Reset(ctx context.Context, username string) error {
	if err := l.redis.Del(ctx, userKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RetryAfter returns how long until the longest open window closes.
func (l *RedisLimiter) RetryAfter(ctx context.Context, username, ip string) time.Duration {
	var longest time.Duration
	for _, key := range l.keys(username, ip) {
		ttl, err := l.redis.TTL(ctx, key).Result()
		if err == nil && ttl > longest {
			longest = ttl
		}
	}
	return longest
}

func (l *RedisLimiter) incrementWithTTL(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func (l *RedisLimiter) keys(username, ip string) []string {
	keys := []string{userKey(username)}
	if ip != "" {
		keys = append(keys, ipKey(ip))
	}
	return keys
}

func userKey(username string) string {
	return keyPrefix + "user:" + strings.ToLower(username)
}

func ipKey(ip string) string {
	return keyPrefix + "ip:" + ip
}
