package shutdown

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// InFlight tracks requests that must finish before their dependencies close,
// such as refunds whose outcome is written after the gateway answers.
type InFlight struct {
	name    string
	logger  *zap.Logger
	mu      sync.RWMutex
	wg      sync.WaitGroup
	closing bool
}

// NewInFlight creates a tracker
func NewInFlight(name string, logger *zap.Logger) *InFlight {
	return &InFlight{name: name, logger: logger}
}

// Add registers one unit of work. It returns false once shutdown has begun.
func (f *InFlight) Add() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closing {
		return false
	}
	f.wg.Add(1)
	return true
}

// Done completes a unit of work started with Add
func (f *InFlight) Done() {
	f.wg.Done()
}

// Middleware tracks each request and answers 503 after shutdown has begun
func (f *InFlight) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.Add() {
			w.Header().Set("Retry-After", "5")
			http.Error(w, "service shutting down", http.StatusServiceUnavailable)
			return
		}
		defer f.Done()
		next.ServeHTTP(w, r)
	})
}

// Shutdown rejects new work and waits for running work or ctx
func (f *InFlight) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	f.closing = true
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		f.logger.Warn("In-flight work still running at shutdown deadline", zap.String("tracker", f.name))
		return ctx.Err()
	}
}
