package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/newebpay-service/internal/adapters/newebpay"
	"github.com/kevin07696/newebpay-service/internal/adapters/postgres"
	"github.com/kevin07696/newebpay-service/internal/adapters/secrets"
	"github.com/kevin07696/newebpay-service/internal/config"
	handlers "github.com/kevin07696/newebpay-service/internal/handlers/newebpay"
	"github.com/kevin07696/newebpay-service/internal/middleware"
	"github.com/kevin07696/newebpay-service/internal/services/credential"
	"github.com/kevin07696/newebpay-service/internal/services/payment"
	"github.com/kevin07696/newebpay-service/internal/services/reconcile"
	"github.com/kevin07696/newebpay-service/internal/services/refund"
	"github.com/kevin07696/newebpay-service/pkg/lockmap"
	pkgmiddleware "github.com/kevin07696/newebpay-service/pkg/middleware"
	"github.com/kevin07696/newebpay-service/pkg/observability"
	"github.com/kevin07696/newebpay-service/pkg/shutdown"
)

const (
	version              = "0.1.0"
	credentialCacheSize  = 100
	poolMonitorInterval  = 30 * time.Second
	gracefulShutdownWait = 30 * time.Second
)

// Dependencies holds all initialized dependencies
type Dependencies struct {
	callbackHandler *handlers.CallbackHandler
	apiHandler      *handlers.APIHandler
	notifyAllowlist *middleware.NotifyIPAllowlist
	refundsInFlight *shutdown.InFlight
	returnLimiter   *pkgmiddleware.RateLimiter
	notifyLimiter   *pkgmiddleware.RateLimiter
	apiLimiter      *pkgmiddleware.RateLimiter
}

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting newebpay service",
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.ConnectionString())
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	dbPool, err := postgres.NewPool(ctx, poolCfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	postgres.StartPoolMonitoring(ctx, dbPool, poolMonitorInterval, logger)

	deps, err := initDependencies(ctx, cfg, dbPool, logger)
	if err != nil {
		dbPool.Close()
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           newRouter(cfg, deps, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:       time.Minute,
	}

	health := observability.NewHealthChecker(dbPool)
	metricsServer := observability.StartMetricsServer(
		cfg.Server.Host,
		strconv.Itoa(cfg.Server.MetricsPort),
		health,
		logger,
	)

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Stopped in reverse order: readiness and HTTP first, the pool last
	manager := shutdown.NewManager(logger, gracefulShutdownWait)
	manager.RegisterNoErr("database", dbPool.Close)
	manager.RegisterNoErr("pool_monitor", cancel)
	manager.RegisterNoErr("rate_limiters", func() {
		deps.returnLimiter.Shutdown()
		deps.notifyLimiter.Shutdown()
		deps.apiLimiter.Shutdown()
	})
	manager.Register("refunds", deps.refundsInFlight.Shutdown)
	manager.Register("metrics_server", func(ctx context.Context) error {
		return observability.ShutdownMetricsServer(ctx, metricsServer)
	})
	manager.RegisterHTTPServer("http_server", httpServer)
	manager.RegisterNoErr("readiness", health.MarkDraining)

	if err := manager.WaitForShutdown(context.Background()); err != nil {
		logger.Error("Shutdown finished with errors", zap.Error(err))
	}
}

// initLogger builds a JSON logger in production and a console logger elsewhere
func initLogger(cfg *config.Config) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if cfg.Logger.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	return logger.With(zap.String("service", "newebpay-service"))
}

// initDependencies wires the repositories, gateway clients and services
func initDependencies(ctx context.Context, cfg *config.Config, dbPool *pgxpool.Pool, logger *zap.Logger) (*Dependencies, error) {
	db := postgres.NewDBExecutor(dbPool)
	txnRepo := postgres.NewTransactionRepository(db)
	providerRepo := postgres.NewProviderRepository(db)

	secretMgr, err := secrets.NewFromConfig(ctx, cfg.Secrets, logger)
	if err != nil {
		return nil, fmt.Errorf("secret manager: %w", err)
	}
	credentials := credential.NewCache(providerRepo, secretMgr, logger, cfg.NewebPay.CredentialTTL, credentialCacheSize)

	refundCfg := newebpay.DefaultRefundClientConfig()
	refundCfg.Timeout = cfg.NewebPay.RefundTimeout
	refundCfg.EndpointOverride = cfg.NewebPay.RefundEndpoint
	refundGateway := newebpay.NewRefundClient(refundCfg, nil, logger)

	// Callbacks and refunds on one transaction serialize on the same lock
	locks := lockmap.New()

	reconcileSvc := reconcile.NewService(
		reconcile.Config{ProviderCode: cfg.NewebPay.ProviderCode},
		txnRepo, credentials, locks, logger,
	)
	refundSvc := refund.NewService(txnRepo, credentials, refundGateway, locks, logger)
	checkoutSvc := payment.NewService(
		payment.Config{
			ProviderCode:    cfg.NewebPay.ProviderCode,
			CallbackBaseURL: cfg.NewebPay.CallbackBaseURL,
			ClientBackURL:   cfg.NewebPay.ClientBackURL,
		},
		txnRepo, credentials, newebpay.NewRequestBuilder(logger), logger,
	)

	allowlist, err := middleware.NewNotifyIPAllowlist(cfg.NewebPay.NotifyAllowlist, cfg.NewebPay.AllowPrivateIPs, logger)
	if err != nil {
		return nil, fmt.Errorf("notify allowlist: %w", err)
	}

	callbackHandler := handlers.NewCallbackHandler(
		handlers.CallbackConfig{StatusPath: cfg.NewebPay.StatusPath, ProcessPath: cfg.NewebPay.ProcessPath},
		reconcileSvc, logger,
	)

	deps := &Dependencies{
		callbackHandler: callbackHandler,
		apiHandler:      handlers.NewAPIHandler(checkoutSvc, checkoutSvc, refundSvc, logger),
		notifyAllowlist: allowlist,
		refundsInFlight: shutdown.NewInFlight("refunds", logger),
		returnLimiter:   newLimiter("callback_return", cfg.RateLimit, logger),
		notifyLimiter:   newLimiter("callback_notify", cfg.RateLimit, logger),
		apiLimiter:      newLimiter("api", cfg.RateLimit, logger),
	}
	// The gateway only reads a 200 body, and a browser should land on a page
	deps.notifyLimiter.Rejected = http.HandlerFunc(handlers.NotifyRateLimited)
	deps.returnLimiter.Rejected = http.HandlerFunc(callbackHandler.ReturnRateLimited)

	logger.Info("Dependencies initialized",
		zap.String("provider_code", cfg.NewebPay.ProviderCode),
		zap.String("secret_backend", cfg.Secrets.Backend),
		zap.Bool("notify_allowlist", allowlist.Enabled()),
	)
	return deps, nil
}

func newLimiter(name string, cfg config.RateLimitConfig, logger *zap.Logger) *pkgmiddleware.RateLimiter {
	limiterCfg := pkgmiddleware.DefaultRateLimiterConfig(name)
	limiterCfg.RequestsPerSecond = cfg.RequestsPerSecond
	limiterCfg.Burst = cfg.Burst
	return pkgmiddleware.NewRateLimiter(limiterCfg, logger)
}
