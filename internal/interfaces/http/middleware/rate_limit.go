package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/config"
	"golang.org/x/time/rate"
)

// RateLimit counts requests per client IP in a fixed one-minute redis window.
// Without redis, or while redis is failing, an in-process token bucket applies.
func RateLimit(cfg config.SecurityConfig, redisClient *redis.Client, log logrus.FieldLogger) gin.HandlerFunc {
	limit := cfg.RateLimitPerMinute
	local := newLocalLimiter(limit, cfg.RateLimitBurst)

	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		clientIP := c.ClientIP()

		if redisClient != nil {
			count, err := incrementWindow(c.Request.Context(), redisClient, "rate_limit:"+clientIP)
			if err == nil {
				remaining := limit - int(count)
				if remaining < 0 {
					remaining = 0
				}
				c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
				c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

				if int(count) > limit {
					tooManyRequests(c)
					return
				}
				c.Next()
				return
			}
			log.WithError(err).Warn("Rate limit store unavailable, using local limiter")
		}

		if !local.allow(clientIP) {
			tooManyRequests(c)
			return
		}
		c.Next()
	}
}

func incrementWindow(ctx context.Context, client *redis.Client, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// the first hit opens the window
	if count == 1 {
		if err := client.Expire(ctx, key, time.Minute).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

func tooManyRequests(c *gin.Context) {
	c.Header("Retry-After", "60")
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":       "Rate limit exceeded",
		"retry_after": 60,
	})
	c.Abort()
}

type localLimiter struct {
	every rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
	swept    time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLocalLimiter(perMinute, burst int) *localLimiter {
	if burst < 1 {
		burst = 1
	}
	every := rate.Inf
	if perMinute > 0 {
		every = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &localLimiter{
		every:    every,
		burst:    burst,
		visitors: make(map[string]*visitor),
		swept:    time.Now(),
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.swept) > 5*time.Minute {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > 10*time.Minute {
				delete(l.visitors, k)
			}
		}
		l.swept = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}
