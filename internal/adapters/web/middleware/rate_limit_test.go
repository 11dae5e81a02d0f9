package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("192.168.1.1"), "request %d", i+1)
	}
	assert.False(t, limiter.Allow("192.168.1.1"), "4th request should be blocked")
	assert.True(t, limiter.Allow("192.168.1.2"), "other clients have their own bucket")
	assert.Equal(t, 2, limiter.Clients())
}

func TestRateLimiter_Refills(t *testing.T) {
	limiter := NewRateLimiter(2, 200*time.Millisecond)

	limiter.Allow("10.0.0.1")
	limiter.Allow("10.0.0.1")
	assert.False(t, limiter.Allow("10.0.0.1"))

	time.Sleep(250 * time.Millisecond)
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestRateLimiter_CleanupDropsIdle(t *testing.T) {
	limiter := NewRateLimiter(5, time.Second)
	limiter.Allow("10.0.0.1")

	limiter.mu.Lock()
	limiter.buckets["10.0.0.1"].lastSeen = time.Now().Add(-2 * idleAfter)
	limiter.mu.Unlock()

	limiter.Allow("10.0.0.2")
	assert.Equal(t, 1, limiter.Clients())
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimitMiddleware(NewRateLimiter(1, time.Minute))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.1.1.1:5555"

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// Forwarded clients are limited on their own address.
	req.Header.Set("X-Forwarded-For", "172.16.0.9, 10.1.1.1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
