package middleware

import (
	"net/http"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/thriftkids/marketplace/pkg/metrics"
)

func TestRedisRateLimitMiddleware_Basic(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})

	r := gin.New()
	// one request per ten second window, no burst
	r.Use(RedisRateLimitMiddleware(client, 0.1, 0, 10*time.Second))
	r.GET("/r", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	require.Equal(t, http.StatusOK, get(r, "/r", "").Code)

	w := get(r, "/r", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "10", w.Header().Get("Retry-After"))

	// expire the window key in miniredis
	m.FastForward(12 * time.Second)
	require.Equal(t, http.StatusOK, get(r, "/r", "").Code)
}

func TestRedisRateLimitMiddleware_AllowsWhenRedisDown(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	m.Close()

	r := gin.New()
	r.Use(RedisRateLimitMiddleware(client, 0.1, 0, time.Second))
	r.GET("/r", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	before := testutil.ToFloat64(metrics.Degradations.WithLabelValues("rate_limit"))

	require.Equal(t, http.StatusOK, get(r, "/r", "").Code)
	require.Equal(t, http.StatusOK, get(r, "/r", "").Code)
	require.Equal(t, before+2, testutil.ToFloat64(metrics.Degradations.WithLabelValues("rate_limit")))
}

func TestRedisRateLimitMiddleware_NilClientUsesMemory(t *testing.T) {
	r := gin.New()
	r.Use(RedisRateLimitMiddleware(nil, 0.5, 1, time.Second))
	r.GET("/r", func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, get(r, "/r", "").Code)
	require.Equal(t, http.StatusTooManyRequests, get(r, "/r", "").Code)
}
