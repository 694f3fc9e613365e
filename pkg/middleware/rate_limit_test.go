package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/thriftkids/marketplace/pkg/metrics"
)

func get(r *gin.Engine, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_AllowsUnderLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(10, 2))
	r.GET("/ok", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	before := testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory"))

	require.Equal(t, http.StatusOK, get(r, "/ok", "").Code)
	require.Equal(t, http.StatusOK, get(r, "/ok", "").Code)

	require.Equal(t, before+2, testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory")))
}

func TestRateLimitMiddleware_BlocksWhenExceeded(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(0.5, 1))
	r.GET("/limited", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	before := testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("memory"))

	require.Equal(t, http.StatusOK, get(r, "/limited", "").Code)

	w := get(r, "/limited", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))
	require.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("memory")))

	// 0.5 rps refills one token after two seconds
	time.Sleep(2100 * time.Millisecond)
	require.Equal(t, http.StatusOK, get(r, "/limited", "").Code)
}

func TestRateLimitMiddleware_SeparateBucketsPerIP(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(0.5, 1))
	r.GET("/u", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	require.Equal(t, http.StatusOK, get(r, "/u", "10.0.0.1:1234").Code)
	require.Equal(t, http.StatusTooManyRequests, get(r, "/u", "10.0.0.1:1234").Code)
	require.Equal(t, http.StatusOK, get(r, "/u", "10.0.0.2:1234").Code)
}

func TestRateLimitMiddleware_FreshBucketsPerInstance(t *testing.T) {
	first := gin.New()
	first.Use(RateLimitMiddleware(0.5, 1))
	first.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	require.Equal(t, http.StatusOK, get(first, "/x", "").Code)
	require.Equal(t, http.StatusTooManyRequests, get(first, "/x", "").Code)

	second := gin.New()
	second.Use(RateLimitMiddleware(0.5, 1))
	second.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	require.Equal(t, http.StatusOK, get(second, "/x", "").Code)
}
