package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the key and starts its expiry on the first
// hit of a window. Returns {count, pttl}.
const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return { count, ttl }
`

// Redis shares windows between instances. Redis failures fail open.
type Redis struct {
	rdb    redis.Scripter
	script *redis.Script
	prefix string
	max    int
	window time.Duration
	clock  clockwork.Clock
}

// NewRedis builds a Redis backed limiter.
func NewRedis(rdb redis.Scripter, max int, window time.Duration) *Redis {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{
		rdb:    rdb,
		script: redis.NewScript(fixedWindowScript),
		prefix: "ratelimit:",
		max:    max,
		window: window,
		clock:  clockwork.NewRealClock(),
	}
}

// Allow implements Limiter. On Redis errors the request is allowed and the
// error is returned for logging.
func (l *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.clock.Now()
	res, err := l.script.Run(ctx, l.rdb, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil || len(res) < 2 {
		slog.Error("redis rate limiter script error", slog.String("key", key), slog.Any("error", err))
		return Decision{Allowed: true, Limit: l.max, ResetAt: now.Add(l.window)}, err
	}
	count := int(res[0])
	return Decision{
		Allowed: count <= l.max,
		Count:   count,
		Limit:   l.max,
		ResetAt: now.Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}
