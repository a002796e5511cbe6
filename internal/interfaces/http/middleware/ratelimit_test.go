package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketLimiter_AllowsBurst(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 2, time.Minute)
	defer limiter.Stop()

	allowed, _ := limiter.Allow("client-a")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("client-a")
	assert.True(t, allowed)
	allowed, info := limiter.Allow("client-a")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
}

func TestTokenBucketLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 1, time.Minute)
	defer limiter.Stop()

	allowed, _ := limiter.Allow("client-a")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("client-a")
	assert.False(t, allowed)

	allowed, _ = limiter.Allow("client-b")
	assert.True(t, allowed)
}

func TestRateLimit_Returns429WhenExceeded(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 1, time.Minute)
	defer limiter.Stop()

	handler := RateLimit(limiter, DefaultRateLimitConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/abc/annotations", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req)
	assert.Equal(t, http.StatusOK, w1.Code)

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	assert.NotEmpty(t, w2.Header().Get("Retry-After"))
	assert.Equal(t, "0", w2.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_SkipPaths(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 1, time.Minute)
	defer limiter.Stop()

	config := DefaultRateLimitConfig()
	config.SkipPaths = []string{"/healthz"}

	handler := RateLimit(limiter, config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestUserKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "user-42")
	assert.Equal(t, "user:user-42", UserKeyFunc(req))

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.Header.Set("X-Real-IP", "10.0.0.9")
	assert.Equal(t, "ip:10.0.0.9", UserKeyFunc(req2))
}
