package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matribhumi/api/logger"
	"matribhumi/api/store"
)

type brokenLimiter struct{}

func (brokenLimiter) Hit(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis: connection refused")
}

func newLimitedRouter(limiter Limiter, limit int, onLimited OnLimited) *gin.Engine {
	r := gin.New()
	r.POST("/events", RateLimit(limiter, "events", limit, 10*time.Minute, logger.NewNop(), onLimited), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func post(r http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_BlocksOverLimit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limited := 0
	r := newLimitedRouter(store.NewRateLimitStore(client, "rl:"), 2, func(*gin.Context) { limited++ })

	assert.Equal(t, http.StatusCreated, post(r, "192.0.2.1:4000").Code)
	rec := post(r, "192.0.2.1:4001")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = post(r, "192.0.2.1:4002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "600", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many requests"}`, rec.Body.String())
	assert.Equal(t, 1, limited)

	// a different client has its own window
	assert.Equal(t, http.StatusCreated, post(r, "192.0.2.99:4000").Code)

	// raw addresses never reach Redis
	for _, key := range mr.Keys() {
		assert.NotContains(t, key, "192.0.2.1")
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	r := newLimitedRouter(brokenLimiter{}, 1, nil)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusCreated, post(r, "192.0.2.1:4000").Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	r := newLimitedRouter(nil, 1, nil)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusCreated, post(r, "192.0.2.1:4000").Code)
	}

	r = newLimitedRouter(brokenLimiter{}, 0, nil)
	assert.Equal(t, http.StatusCreated, post(r, "192.0.2.1:4000").Code)
}
