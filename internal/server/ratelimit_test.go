package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimit(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "buckets are per address")
}

func TestLimiterEvictsIdleClients(t *testing.T) {
	l := newLimiter(RateLimitConfig{RequestsPerSecond: 1})
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.Equal(t, 1, l.size())

	now = now.Add(idleClient + time.Second)
	assert.True(t, l.allow("b"))
	assert.Equal(t, 1, l.size(), "idle client swept")
}

func TestRateLimitConfigEnabled(t *testing.T) {
	assert.False(t, RateLimitConfig{}.Enabled())
	assert.True(t, RateLimitConfig{RequestsPerSecond: 5}.Enabled())
}
