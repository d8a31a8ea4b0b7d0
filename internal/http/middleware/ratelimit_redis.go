package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// incrExpireScript increments the window counter and arms its expiry on the
// first hit, atomically.
var incrExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisRateLimiter is a fixed-window limiter whose counters live in Redis,
// so every replica enforces the same budget. When Redis is unreachable the
// limiter fails open and logs the error.
type RedisRateLimiter struct {
	rdb    redis.UniversalClient
	max    int
	window time.Duration
	keyFn  KeyFunc
	prefix string
}

// NewRedisRateLimiter allows max requests per window per key.
func NewRedisRateLimiter(rdb redis.UniversalClient, max int, window time.Duration, keyFn KeyFunc) *RedisRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if keyFn == nil {
		keyFn = KeyByUserOrIP()
	}
	return &RedisRateLimiter{rdb: rdb, max: max, window: window, keyFn: keyFn, prefix: "rl:todo:"}
}

// Handler returns the limiting middleware. It sets X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset on every counted request.
func (rl *RedisRateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || strings.EqualFold(c.Request.Method, http.MethodOptions) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := rl.prefix + rl.keyFn(c)

		count, err := incrExpireScript.Run(ctx, rl.rdb, []string{key}, rl.window.Milliseconds()).Int()
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		resetSec := int(rl.window.Seconds())
		if ttl, err := rl.rdb.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
			resetSec = int((ttl + time.Second - 1) / time.Second)
		}
		remaining := rl.max - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetSec))

		if count > rl.max {
			rejectRateLimited(c, resetSec)
			return
		}
		c.Next()
	}
}
