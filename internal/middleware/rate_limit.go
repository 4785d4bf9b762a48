package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
	"github.com/noah-isme/dekont-api/pkg/response"
)

const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

// Limiter decides whether key may make another call inside window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// MemoryLimiter is a fixed-window limiter for single-instance deployments.
// Expired windows are swept at most once per window length.
type MemoryLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*rateBucket
	now       func() time.Time
	nextSweep time.Time
}

type rateBucket struct {
	count     int
	windowEnd time.Time
}

// NewMemoryLimiter constructs an empty limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*rateBucket), now: time.Now}
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.After(l.nextSweep) {
		for k, b := range l.buckets {
			if now.After(b.windowEnd) {
				delete(l.buckets, k)
			}
		}
		l.nextSweep = now.Add(window)
	}
	bucket, ok := l.buckets[key]
	if !ok || now.After(bucket.windowEnd) {
		l.buckets[key] = &rateBucket{count: 1, windowEnd: now.Add(window)}
		return true, nil
	}
	if bucket.count >= limit {
		return false, nil
	}
	bucket.count++
	return true, nil
}

// RedisLimiter shares the fixed window across instances through an INCR/PEXPIRE script.
type RedisLimiter struct {
	client *redis.Client
	script *redis.Script
	prefix string
}

// NewRedisLimiter returns nil when client is nil so callers can fall back.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if client == nil {
		return nil
	}
	return &RedisLimiter{client: client, script: redis.NewScript(rateLimitScript), prefix: prefix}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ttl := window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}
	ctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	allowed, err := l.script.Run(ctx, l.client, []string{l.prefix + key}, ttl, limit).Int64()
	if err != nil {
		return true, fmt.Errorf("rate limit script: %w", err)
	}
	return allowed == 1, nil
}

// RateLimit throttles a route per authenticated user, or per client IP when
// no user is attached. Limiter errors fail open.
func RateLimit(limiter Limiter, scope string, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 || window <= 0 {
			c.Next()
			return
		}
		subject := c.ClientIP()
		if claims := ClaimsFrom(c); claims != nil && claims.UserID != "" {
			subject = claims.UserID
		}
		key := "ratelimit:" + scope + ":" + subject

		allowed, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.Abort(c, appErrors.WithDetails(appErrors.ErrTooManyRequests, map[string]interface{}{
				"limit":         limit,
				"windowSeconds": int(window.Seconds()),
			}))
			return
		}
		c.Next()
	}
}
