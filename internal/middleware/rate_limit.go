// internal/middleware/rate_limit.go
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/soundhaus/label-backend/internal/config"
)

// Limiter answers whether a given key may proceed. The public endpoints take
// a Limiter rather than a concrete store so single-node deployments can run
// without Redis.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a fixed-window counter shared across instances. The first
// hit in a window creates the key with a TTL; everything above the limit
// inside that window is rejected.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, prefix string, limit int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:%s:%s", l.prefix, key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}

	// The TTL belongs to the window, not the request: set it only when the
	// increment created the key, or every hit would push the expiry out and
	// a steady client could be throttled forever.
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, err
		}
	}

	return count <= l.limit, nil
}

// LocalLimiter keeps a token bucket per client key in memory. Used when no
// Redis address is configured.
type LocalLimiter struct {
	visitors map[string]*visitor
	mtx      sync.Mutex
	rate     rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalLimiter(r rate.Limit, burst int) *LocalLimiter {
	l := &LocalLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    burst,
	}

	// Clean up old visitors every minute
	go l.cleanupVisitors()

	return l
}

func (l *LocalLimiter) cleanupVisitors() {
	for {
		time.Sleep(time.Minute)
		l.mtx.Lock()
		for key, v := range l.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(l.visitors, key)
			}
		}
		l.mtx.Unlock()
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	v, exists := l.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = time.Now()

	return v.limiter.Allow(), nil
}

// RateLimit rejects clients above the limit with 429. A failing limiter
// backend lets traffic through; throttling must never take checkout down.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logrus.WithError(err).Warn("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// NewCheckoutLimiter picks Redis when configured, otherwise an in-process
// bucket. Checkout is the endpoint worth throttling: each call creates a
// session at the payment gateway.
func NewCheckoutLimiter(cfg *config.Config) Limiter {
	if cfg.Redis.Host != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisLimiter(client, "checkout", 10, time.Minute)
	}

	return NewLocalLimiter(rate.Every(6*time.Second), 10)
}

// NewGeneralLimiter throttles the public read endpoints.
func NewGeneralLimiter(cfg *config.Config) Limiter {
	if cfg.Redis.Host != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisLimiter(client, "general", 600, time.Minute)
	}

	return NewLocalLimiter(rate.Every(100*time.Millisecond), 20)
}
