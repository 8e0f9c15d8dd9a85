package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/givebox/internal/clock"
)

// slidingWindowScript trims the window, counts, and records the request only
// when it fits. Scores are unix milliseconds supplied by the caller.
const slidingWindowScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])

local allowed = 0
if count < limit then
  redis.call("ZADD", KEYS[1], now, member)
  count = count + 1
  allowed = 1
end

local reset = now + window
local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end

redis.call("PEXPIRE", KEYS[1], window)

-- Return: allowed, count, reset (milliseconds)
return {allowed, count, reset}
`

// RedisStore shares counters between instances through one sorted set per key.
type RedisStore struct {
	client redis.UniversalClient
	script *redis.Script
	clock  clock.Clock
}

func NewRedisStore(client redis.UniversalClient, c clock.Clock) *RedisStore {
	if client == nil {
		return nil
	}
	if c == nil {
		c = clock.System()
	}
	return &RedisStore{
		client: client,
		script: redis.NewScript(slidingWindowScript),
		clock:  c,
	}
}

func (s *RedisStore) Check(ctx context.Context, key string, window time.Duration, limit int) (Result, error) {
	if s == nil || s.client == nil {
		return Result{}, errors.New("rate limit store not configured")
	}
	if key == "" {
		return Result{}, errors.New("rate limit key is empty")
	}
	if window <= 0 || limit <= 0 {
		return Result{}, errors.New("rate limit window and limit must be positive")
	}

	now := s.clock.Now().UnixMilli()
	res, err := s.script.Run(
		ctx,
		s.client,
		[]string{key},
		now,
		window.Milliseconds(),
		limit,
		fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) < 3 {
		return Result{}, errors.New("invalid rate limit script response")
	}

	count := int(castToInt(res[1]))
	return Result{
		Allowed:   castToInt(res[0]) == 1,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   time.UnixMilli(castToInt(res[2])).UTC(),
	}, nil
}

func castToInt(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	default:
		return 0
	}
}
