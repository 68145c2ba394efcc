package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/workloy/workloy/internal/config"
)

// Redis wraps the go-redis client used for rate limiting and short-lived
// caching. The Client field is exported so callers can pipeline their own
// commands.
type Redis struct {
	Client *redis.Client
}

// New creates a Redis connection from the configured URL and verifies it
// with a ping.
func New(cfg *config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	return &Redis{Client: client}, nil
}

// Close closes the underlying connection
func (r *Redis) Close() error {
	return r.Client.Close()
}

// Health checks Redis connectivity
func (r *Redis) Health(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// RateLimitResult reports the outcome of a rate limit check
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	Limit      int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// CheckRateLimit applies a sliding window limit keyed by caller identity.
// The window is a Redis sorted set scored by request timestamp; entries
// older than the window are trimmed before counting. On Redis failure the
// check fails open so a cache outage never blocks the API.
func (r *Redis) CheckRateLimit(ctx context.Context, identity string, limit, windowSeconds int) (*RateLimitResult, error) {
	if windowSeconds <= 0 {
		windowSeconds = 60
	}

	now := time.Now()
	windowDuration := time.Duration(windowSeconds) * time.Second
	windowStart := now.Add(-windowDuration)
	key := fmt.Sprintf("ratelimit:sliding:%s", identity)

	pipe := r.Client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("Failed to check rate limit")
		return &RateLimitResult{
			Allowed:   true,
			Remaining: int64(limit),
			Limit:     limit,
		}, nil
	}

	currentCount := countCmd.Val()
	result := &RateLimitResult{
		Limit:   limit,
		ResetAt: now.Add(windowDuration),
	}

	if currentCount >= int64(limit) {
		result.Allowed = false
		result.Remaining = 0

		oldest, err := r.Client.ZRangeWithScores(ctx, key, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			oldestTime := time.Unix(0, int64(oldest[0].Score))
			result.RetryAfter = oldestTime.Add(windowDuration).Sub(now)
			if result.RetryAfter < 0 {
				result.RetryAfter = time.Second
			}
		} else {
			result.RetryAfter = windowDuration
		}
		return result, nil
	}

	entry := fmt.Sprintf("%d-%s", now.UnixNano(), identity)
	if err := r.Client.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: entry,
	}).Err(); err != nil {
		log.Warn().Err(err).Str("identity", identity).Msg("Failed to add rate limit entry")
	}
	r.Client.Expire(ctx, key, windowDuration*2)

	result.Allowed = true
	result.Remaining = int64(limit) - currentCount - 1
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	return result, nil
}
