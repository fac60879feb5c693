package http

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowCounter counts hits for key inside a fixed window.
type WindowCounter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Limit    int
	Window   time.Duration
	FailOpen bool
	Logger   *slog.Logger
}

// RateLimit rejects callers that exceed cfg.Limit requests per window. Authenticated
// requests are keyed by principal, anonymous ones by client address. When the counter
// fails the request is served if FailOpen is set and rejected with 503 otherwise.
func RateLimit(counter WindowCounter, cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Limit <= 0 {
		cfg.Limit = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	responder := newResponder(cfg.Logger, nil)

	return func(next http.Handler) http.Handler {
		if counter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, err := counter.Increment(r.Context(), rateLimitKey(r), cfg.Window)
			if err != nil {
				responder.loggerFor(r.Context()).WarnContext(r.Context(), "rate limiter error", "error", err, "fail_open", cfg.FailOpen)
				if cfg.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, errorResponse{Message: messageServiceUnavailable})
				return
			}
			if count > int64(cfg.Limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				responder.writeJSON(r.Context(), w, http.StatusTooManyRequests, errorResponse{Message: messageRateLimited})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if principal, ok := PrincipalFromContext(r.Context()); ok && principal.UserID != "" {
		return "user:" + principal.UserID
	}
	return "ip:" + clientKey(r)
}

func clientKey(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		parts := strings.Split(ip, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

var redisFixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisWindowCounter is a fixed window counter shared by every scheduler instance.
type RedisWindowCounter struct {
	client redis.Scripter
	prefix string
}

// NewRedisWindowCounter wraps client. Keys are stored under prefix.
func NewRedisWindowCounter(client redis.Scripter, prefix string) *RedisWindowCounter {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "scheduler:rl"
	}
	return &RedisWindowCounter{client: client, prefix: prefix}
}

// Increment implements WindowCounter.
func (c *RedisWindowCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = int64(time.Minute / time.Millisecond)
	}
	res, err := redisFixedWindowScript.Run(ctx, c.client, []string{c.prefix + ":" + key}, ms).Result()
	if err != nil {
		return 0, err
	}
	return scriptCount(res)
}

func scriptCount(res any) (int64, error) {
	switch v := res.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected redis script result type %T", res)
	}
}
