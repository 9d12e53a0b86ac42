package proctor

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/codelock/codelock-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisCounter is the production CounterStore: one Redis key per
// (student, exam), so the count survives reconnects and reloads.
type RedisCounter struct {
	rdb *redis.Client
	key string
}

// NewRedisCounter builds a counter scoped to one attempt.
func NewRedisCounter(rdb *redis.Client, examID string, studentID int) *RedisCounter {
	return &RedisCounter{
		rdb: rdb,
		key: config.CacheKey.ProctorExitCountKey(examID, studentID),
	}
}

// Increment atomically bumps the exit count and returns the new value.
func (c *RedisCounter) Increment(ctx context.Context) (int, error) {
	n, err := c.rdb.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr exit count: %w", err)
	}
	return int(n), nil
}

// Count returns the current exit count (0 if never incremented).
func (c *RedisCounter) Count(ctx context.Context) (int, error) {
	val, err := c.rdb.Get(ctx, c.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get exit count: %w", err)
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid exit count in cache: %w", err)
	}
	return n, nil
}
