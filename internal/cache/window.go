package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowKeyPrefix is the Redis key prefix for rate-limit windows.
const windowKeyPrefix = "ratelimit:"

// WindowResult is the outcome of one sliding-window accounting step.
type WindowResult struct {
	Allowed    bool
	Count      int64
	RetryAfter time.Duration
}

// slidingWindowScript counts requests in a moving window held in a
// sorted set of timestamps. Prune, count, and admit happen atomically so
// concurrent requests from the same client never under-count. When the
// request is rejected, retry_after is derived from when the oldest entry
// leaves the window.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, 0, now_ms - window_ms)

	local count = redis.call('ZCARD', key)
	if count >= limit then
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		local retry_ms = window_ms
		if oldest[2] then
			retry_ms = math.ceil(tonumber(oldest[2]) + window_ms - now_ms)
		end
		return {0, count, retry_ms}
	end

	redis.call('ZADD', key, now_ms, member)
	redis.call('PEXPIRE', key, window_ms)
	return {1, count + 1, 0}
`)

// CheckWindow performs one sliding-window check-and-count for the client
// key, admitting the request if fewer than limit requests landed within
// the window. member must be unique per request so concurrent arrivals
// in the same millisecond each occupy a slot.
func (c *Cache) CheckWindow(ctx context.Context, clientKey string, limit int, window time.Duration, member string) (*WindowResult, error) {
	key := windowKeyPrefix + clientKey
	nowMS := time.Now().UnixMilli()

	values, err := slidingWindowScript.Run(ctx, c.client,
		[]string{key},
		nowMS, window.Milliseconds(), limit, member,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("sliding window check: %w", err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("sliding window check: unexpected reply length %d", len(values))
	}

	return &WindowResult{
		Allowed:    values[0] == 1,
		Count:      values[1],
		RetryAfter: time.Duration(values[2]) * time.Millisecond,
	}, nil
}
