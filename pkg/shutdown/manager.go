package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shutdown_duration_seconds",
		Help:    "Total time taken to shutdown gracefully",
		Buckets: []float64{0.5, 1, 5, 10, 15, 30},
	})

	componentShutdownDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "component_shutdown_duration_seconds",
		Help:    "Time taken to shutdown individual components",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"component"})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutdown_errors_total",
		Help: "Total number of shutdown errors by component",
	}, []string{"component"})
)

// Func stops one component
type Func func(context.Context) error

type component struct {
	name string
	stop Func
}

// Manager stops registered components one at a time in reverse registration
// order, so the HTTP server drains before the refund tracker and the pool closes last.
type Manager struct {
	logger     *zap.Logger
	components []component
	mu         sync.Mutex
	once       sync.Once
	timeout    time.Duration
	err        error
}

// NewManager creates a new shutdown manager
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a component. Later registrations stop first.
func (m *Manager) Register(name string, fn Func) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component{name: name, stop: fn})
}

// RegisterHTTPServer registers anything with an http.Server style Shutdown
func (m *Manager) RegisterHTTPServer(name string, server interface{ Shutdown(context.Context) error }) {
	m.Register(name, server.Shutdown)
}

// RegisterNoErr registers a shutdown function that cannot fail
func (m *Manager) RegisterNoErr(name string, fn func()) {
	m.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// WaitForShutdown blocks until SIGINT, SIGTERM or ctx is done, then shuts down
func (m *Manager) WaitForShutdown(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	m.logger.Info("Shutdown signal received", zap.Duration("timeout", m.timeout))
	return m.Shutdown()
}

// Shutdown stops every component once. Repeated calls return the first result.
func (m *Manager) Shutdown() error {
	m.once.Do(func() {
		m.err = m.shutdown()
	})
	return m.err
}

func (m *Manager) shutdown() error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	components := append([]component(nil), m.components...)
	m.mu.Unlock()

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: skipped: %w", c.name, ctx.Err()))
			shutdownErrors.WithLabelValues(c.name).Inc()
			continue
		}

		began := time.Now()
		err := c.stop(ctx)
		componentShutdownDuration.WithLabelValues(c.name).Observe(time.Since(began).Seconds())
		if err != nil {
			shutdownErrors.WithLabelValues(c.name).Inc()
			m.logger.Error("Component shutdown failed", zap.String("component", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		m.logger.Info("Component stopped",
			zap.String("component", c.name),
			zap.Duration("elapsed", time.Since(began)),
		)
	}

	shutdownDuration.Observe(time.Since(start).Seconds())
	err := errors.Join(errs...)
	if err != nil {
		m.logger.Error("Graceful shutdown completed with errors", zap.Int("error_count", len(errs)))
	} else {
		m.logger.Info("Graceful shutdown completed", zap.Duration("elapsed", time.Since(start)))
	}
	return err
}
