package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
)

// RateLimiter is a fixed-window counter keyed per user, used to cap how
// many answer requests one account can fire per window.
type RateLimiter interface {
	// Allow reports whether the caller identified by key may proceed.
	// Failures of the backing store fail open: a broken Redis must not
	// take chat down with it.
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

type rateLimiter struct {
	log    *logger.Logger
	rdb    *goredis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRateLimiter(log *logger.Logger, limit int, window time.Duration) (RateLimiter, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &rateLimiter{
		log:    log.With("service", "RedisRateLimiter"),
		rdb:    rdb,
		limit:  limit,
		window: window,
		prefix: "ratelimit:message:",
	}, nil
}

func (l *rateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	key = l.prefix + strings.TrimSpace(key)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		l.log.Warn("Rate limit check failed; allowing request", "error", err)
		return true, err
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			l.log.Warn("Rate limit expire failed", "key", key, "error", err)
		}
	}
	return count <= int64(l.limit), nil
}

func (l *rateLimiter) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}
