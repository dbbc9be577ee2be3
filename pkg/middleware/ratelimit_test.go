package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/S1/refund", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := newRateLimiter(RateLimiterConfig{Name: "test", RequestsPerSecond: 0.001, Burst: 2}, zap.NewNop())
	handler := rl.Middleware(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, requestFrom("203.0.113.7:5000"))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket; the port is ignored
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestFrom("203.0.113.8:5001"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, rl.Len())
}

func TestRateLimiter_CustomRejection(t *testing.T) {
	rl := newRateLimiter(RateLimiterConfig{Name: "notify", RequestsPerSecond: 0.001, Burst: 1}, zap.NewNop())
	rl.Rejected = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("0|busy"))
	})
	handler := rl.Middleware(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("203.0.113.7:5000"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestFrom("203.0.113.7:5000"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "0|busy", rr.Body.String())
}

func TestRateLimiter_EvictionAndCleanup(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(RateLimiterConfig{
		Name:              "test",
		RequestsPerSecond: 1,
		Burst:             1,
		MaxSize:           2,
		CleanupInterval:   time.Minute,
	}, zap.NewNop())
	rl.now = func() time.Time { return now }

	rl.getLimiter("a")
	now = now.Add(time.Second)
	rl.getLimiter("b")
	now = now.Add(time.Second)
	rl.getLimiter("c")

	assert.Equal(t, 2, rl.Len())
	_, hasOldest := rl.limiters["a"]
	assert.False(t, hasOldest)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, rl.cleanup())
	assert.Equal(t, 0, rl.Len())
}

func TestRateLimiter_ShutdownTwice(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig("test"), zap.NewNop())
	assert.NotPanics(t, func() {
		rl.Shutdown()
		rl.Shutdown()
	})
}
