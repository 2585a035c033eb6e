// internal/middleware/rate_limit_test.go
package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newRedisLimiter(t *testing.T, limit int64, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, "test", limit, window), srv
}

func TestRedisLimiterBlocksAboveLimit(t *testing.T) {
	limiter, _ := newRedisLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Other clients keep their own counters.
	allowed, err = limiter.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiterWindowDoesNotSlide(t *testing.T) {
	limiter, srv := newRedisLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := limiter.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
	}

	// Rejected hits must not refresh the expiry. With most of the window
	// gone, the key is still about to lapse.
	srv.FastForward(50 * time.Second)
	ttl := srv.TTL("ratelimit:test:1.2.3.4")
	assert.True(t, ttl > 0 && ttl <= 10*time.Second, "ttl %v should keep shrinking", ttl)

	// Once the window lapses the counter starts over.
	srv.FastForward(11 * time.Second)
	allowed, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter, _ := newRedisLimiter(t, 1, time.Minute)
	router := gin.New()
	router.GET("/beats", RateLimit(limiter), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	get := func() int {
		req, _ := http.NewRequest("GET", "/beats", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get())
	assert.Equal(t, http.StatusTooManyRequests, get())
}

func TestRateLimitFailsOpenWhenBackendDown(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter, srv := newRedisLimiter(t, 1, time.Minute)
	srv.Close()

	router := gin.New()
	router.GET("/beats", RateLimit(limiter), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest("GET", "/beats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLocalLimiterThrottlesPerKey(t *testing.T) {
	limiter := NewLocalLimiter(rate.Every(time.Hour), 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, allowed)
}
