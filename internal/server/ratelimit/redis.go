package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces limiter keys in a shared Redis.
const DefaultKeyPrefix = "tracker:ratelimit"

// RedisStore enforces a sliding window with one sorted set per key, scored by
// attempt time in milliseconds. Several server instances can share it.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a store on client. An empty prefix uses DefaultKeyPrefix.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// takeScript trims, counts and records in one step so concurrent callers
// cannot all pass the count check.
//
// KEYS[1] the window set
// ARGV    now (ms), window (ms), limit, member
// returns {allowed, count after the call, oldest score (ms)}
var takeScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. (now - window))
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	redis.call('PEXPIRE', key, window)
	count = count + 1
	allowed = 1
end

local oldest = now
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #first > 0 then
	oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// Take implements Store. The attempt is recorded only when it is allowed.
func (s *RedisStore) Take(ctx context.Context, key string, rule Rule, now time.Time) (Info, error) {
	if rule.Window <= 0 {
		return Info{}, fmt.Errorf("window must be positive")
	}

	res, err := takeScript.Run(ctx, s.client,
		[]string{s.key(key)},
		now.UnixMilli(), rule.Window.Milliseconds(), rule.Limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Info{}, fmt.Errorf("redis take: %w", err)
	}
	if len(res) != 3 {
		return Info{}, fmt.Errorf("redis take: unexpected reply %v", res)
	}

	info := Info{
		Allowed:   res[0] == 1,
		Limit:     rule.Limit,
		ResetTime: time.UnixMilli(res[2]).UTC().Add(rule.Window),
	}
	if info.Allowed {
		info.Remaining = max(rule.Limit-int(res[1]), 0)
	} else {
		info.RetryAfter = max(info.ResetTime.Sub(now), 0)
	}
	return info, nil
}

func (s *RedisStore) key(k string) string {
	return s.keyPrefix + ":" + k
}
