// Package middleware provides HTTP middleware shared by the service's routers.
package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_rate_limited_total",
	Help: "Requests rejected by the per-IP rate limiter",
}, []string{"limiter"})

// ipLimiter tracks a rate limiter and its last access time
type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiterConfig configures a per-IP limiter
type RateLimiterConfig struct {
	Name              string        // Metric label
	RequestsPerSecond float64       // Sustained rate per IP
	Burst             int           // Bucket size per IP
	MaxSize           int           // Maximum number of IPs tracked
	CleanupInterval   time.Duration // Idle entries older than this are dropped
}

// DefaultRateLimiterConfig returns 10 rps with a burst of 20 per IP
func DefaultRateLimiterConfig(name string) RateLimiterConfig {
	return RateLimiterConfig{
		Name:              name,
		RequestsPerSecond: 10,
		Burst:             20,
		MaxSize:           10000,
		CleanupInterval:   5 * time.Minute,
	}
}

// RateLimiter provides per-IP rate limiting with automatic cleanup
type RateLimiter struct {
	config   RateLimiterConfig
	limiters map[string]*ipLimiter
	mu       sync.Mutex
	logger   *zap.Logger
	now      func() time.Time

	// Rejected writes the response for a limited request. Defaults to 429.
	Rejected http.Handler

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop
func NewRateLimiter(config RateLimiterConfig, logger *zap.Logger) *RateLimiter {
	rl := newRateLimiter(config, logger)
	go rl.cleanupLoop()
	return rl
}

func newRateLimiter(config RateLimiterConfig, logger *zap.Logger) *RateLimiter {
	if config.MaxSize <= 0 {
		config.MaxSize = 10000
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	return &RateLimiter{
		config:   config,
		limiters: make(map[string]*ipLimiter),
		logger:   logger,
		now:      time.Now,
		Rejected: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		}),
		stopCh: make(chan struct{}),
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup removes entries that haven't been accessed in the last cleanup interval
func (rl *RateLimiter) cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.config.CleanupInterval)
	removed := 0
	for ip, limiter := range rl.limiters {
		if limiter.lastAccess.Before(cutoff) {
			delete(rl.limiters, ip)
			removed++
		}
	}

	if removed > 100 {
		rl.logger.Info("Rate limiter cleanup",
			zap.String("limiter", rl.config.Name),
			zap.Int("removed", removed),
			zap.Int("remaining", len(rl.limiters)),
		)
	}
	return removed
}

// Shutdown stops the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Shutdown() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Len returns the number of tracked IPs
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// getLimiter returns the limiter for ip, evicting the least recently used entry at capacity
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if limiter, ok := rl.limiters[ip]; ok {
		limiter.lastAccess = now
		return limiter.limiter
	}

	if len(rl.limiters) >= rl.config.MaxSize {
		var oldestIP string
		var oldestTime time.Time
		for candidate, lim := range rl.limiters {
			if oldestIP == "" || lim.lastAccess.Before(oldestTime) {
				oldestIP = candidate
				oldestTime = lim.lastAccess
			}
		}
		delete(rl.limiters, oldestIP)
	}

	entry := &ipLimiter{
		limiter:    rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst),
		lastAccess: now,
	}
	rl.limiters[ip] = entry
	return entry.limiter
}

// Middleware returns HTTP middleware that applies rate limiting
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := remoteIP(r)
		if !rl.getLimiter(ip).Allow() {
			rateLimitedTotal.WithLabelValues(rl.config.Name).Inc()
			rl.logger.Warn("Rate limit exceeded",
				zap.String("limiter", rl.config.Name),
				zap.String("ip", ip),
				zap.String("path", r.URL.Path),
			)
			rl.Rejected.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
