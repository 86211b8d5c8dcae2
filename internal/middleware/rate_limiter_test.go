package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pytake/taskqueue/internal/config"
	"github.com/pytake/taskqueue/internal/store"
)

func newRateLimitConfig(rps, burst int) *config.Config {
	cfg := &config.Config{}
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerSec = rps
	cfg.RateLimit.Burst = burst
	return cfg
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := store.NewFake()
	cfg := newRateLimitConfig(2, 0)

	router := gin.New()
	router.Use(RateLimiter(db, cfg))
	router.GET("/test", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, err := http.NewRequest("GET", "/test", nil)
		require.NoError(t, err)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := store.NewFake()
	cfg := newRateLimitConfig(1, 0)

	router := gin.New()
	router.Use(RateLimiter(db, cfg))
	router.GET("/test", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	var lastCode int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, err := http.NewRequest("GET", "/test", nil)
		require.NoError(t, err)
		router.ServeHTTP(w, req)
		lastCode = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestRateLimiterDisabledPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := store.NewFake()
	cfg := &config.Config{}
	cfg.RateLimit.Enabled = false

	router := gin.New()
	router.Use(RateLimiter(db, cfg))
	router.GET("/test", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		req, err := http.NewRequest("GET", "/test", nil)
		require.NoError(t, err)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
