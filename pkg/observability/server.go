package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const metricsShutdownTimeout = 5 * time.Second

// NewMetricsHandler serves /metrics from gatherer plus /health and /ready when
// health is set
func NewMetricsHandler(gatherer prometheus.Gatherer, health *HealthChecker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if health != nil {
		mux.HandleFunc("GET /health", health.HealthHandler())
		mux.HandleFunc("GET /ready", health.ReadyHandler())
	}
	return mux
}

// StartMetricsServer serves the default registry on host:port in the background
func StartMetricsServer(host string, port string, health *HealthChecker, logger *zap.Logger) *http.Server {
	server := &http.Server{
		Addr:              net.JoinHostPort(host, port),
		Handler:           NewMetricsHandler(prometheus.DefaultGatherer, health),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	return server
}

// ShutdownMetricsServer stops server, giving scrapes at most five seconds
func ShutdownMetricsServer(ctx context.Context, server *http.Server) error {
	ctx, cancel := context.WithTimeout(ctx, metricsShutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}
