package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// movingWindowScript keeps one sorted-set member per hit, scored by its
// timestamp in milliseconds.
var movingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
local allowed = 0
if count < limit then
  redis.call("ZADD", key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call("PEXPIRE", key, window)

local reset = window
local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
if oldest[2] then
  reset = tonumber(oldest[2]) + window - now
end
return {allowed, count, reset}
`)

// RedisBackend shares counters between instances through Redis.
type RedisBackend struct {
	client redis.UniversalClient
}

func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Hit(ctx context.Context, key string, limit Limit, now time.Time) (Result, error) {
	windowMs := limit.Per.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	raw, err := movingWindowScript.Run(ctx, r.client, []string{key},
		now.UnixMilli(), windowMs, limit.Count, uuid.NewString()).Result()
	if err != nil {
		return Result{}, err
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return Result{}, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}

	nums := make([]int64, 3)
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return Result{}, fmt.Errorf("unexpected redis limiter value type: %T", v)
		}
		nums[i] = n
	}

	remaining := limit.Count - int(nums[1])
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:    nums[0] == 1,
		Limit:      limit.Count,
		Remaining:  remaining,
		ResetAfter: time.Duration(nums[2]) * time.Millisecond,
	}, nil
}
