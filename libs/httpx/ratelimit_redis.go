package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimit configures a limiter whose counters live in Redis, so the limit holds across every
// replica of the service.
type RedisLimit struct {
	Limit  int
	Window time.Duration
	Key    KeyFunc

	// Scope namespaces the counters, e.g. "bookings:create".
	Scope string
	// FailOpen lets requests through while Redis is unreachable.
	FailOpen bool
}

type RedisRateLimiter struct {
	cfg    RedisLimit
	logger *slog.Logger
	hit    func(ctx context.Context, key string) (windowHit, error)
}

// windowHit is one counted request: its position in the window and the time until the window
// resets.
type windowHit struct {
	count int64
	reset time.Duration
}

// KEYS[1] counter, ARGV[1] window in ms. Returns {count, ms until reset}. A counter that lost
// its expiry is re-armed so a caller cannot stay locked out.
var fixedWindowHit = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if n == 1 or ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

func NewRedisRateLimiter(rdb redis.Scripter, cfg RedisLimit, logger *slog.Logger) *RedisRateLimiter {
	if cfg.Limit <= 0 {
		cfg.Limit = 60
	}
	if cfg.Window < time.Millisecond {
		cfg.Window = time.Minute
	}
	if cfg.Scope == "" {
		cfg.Scope = "default"
	}
	if cfg.Key == nil {
		cfg.Key = ClientIP
	}
	if logger == nil {
		logger = slog.Default()
	}
	rl := &RedisRateLimiter{cfg: cfg, logger: logger}
	rl.hit = func(ctx context.Context, key string) (windowHit, error) {
		res, err := fixedWindowHit.Run(ctx, rdb, []string{key}, cfg.Window.Milliseconds()).Int64Slice()
		if err != nil {
			return windowHit{}, err
		}
		if len(res) != 2 {
			return windowHit{}, fmt.Errorf("rate limit script returned %d values", len(res))
		}
		return windowHit{count: res[0], reset: time.Duration(res[1]) * time.Millisecond}, nil
	}
	return rl
}

func (rl *RedisRateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hit, err := rl.hit(r.Context(), "rl:"+rl.cfg.Scope+":"+rl.cfg.Key(r))
			if err != nil {
				rl.logger.Warn("rate limiter unavailable", "err", err, "scope", rl.cfg.Scope, "fail_open", rl.cfg.FailOpen)
				if rl.cfg.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
				return
			}
			setQuota(w, rl.cfg.Limit, int(hit.count))
			if hit.count > int64(rl.cfg.Limit) {
				writeLimited(w, hit.reset)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
