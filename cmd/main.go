package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/churn/internal/adapters/cache"
	"github.com/okian/churn/internal/adapters/http/api"
	"github.com/okian/churn/internal/adapters/http/swagger"
	app "github.com/okian/churn/internal/app"
	"github.com/okian/churn/internal/artifact"
	"github.com/okian/churn/internal/config"
	"github.com/okian/churn/pkg/logger"
	"github.com/okian/churn/pkg/metrics"
	"github.com/okian/churn/pkg/tracing"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	if err := logger.Init(logger.WithFile(cfg.LogFile)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	configureMetrics(cfg)

	shutdownTracing, err := tracing.Init(ctx, tracingOptions(cfg)...)
	if err != nil {
		log.Error(ctx, "tracing init failed", logger.Error(err))
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn(ctx, "tracing shutdown failed", logger.Error(err))
		}
	}()

	// Artifacts must load before the listener opens; there is no degraded mode.
	loader := artifact.NewLoader(cfg.TransformerPath, cfg.ModelPath, artifact.WithLogger(logger.Named("artifact")))
	bundle, err := loader.LoadBundle(ctx)
	if err != nil {
		log.Error(ctx, "failed to load artifacts", logger.Error(err))
		return 1
	}

	predictionCache, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to connect prediction cache", logger.Error(err))
		return 1
	}
	defer closeCache()

	opts := []app.Option{app.WithLogger(log), app.WithBundle(bundle)}
	if predictionCache != nil {
		opts = append(opts, app.WithCache(predictionCache))
	}
	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return 1
	}
	defer svc.Stop()

	go metrics.CollectSystemMetrics(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, svc, cfg),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or listener failure
	code := 0
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			code = 1
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return code
}

// configureMetrics rebuilds the metrics registry from configuration.
func configureMetrics(cfg *config.Config) {
	metrics.Configure(
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithRefreshInterval(time.Duration(cfg.MetricsRefreshSeconds)*time.Second),
	)
}

func tracingOptions(cfg *config.Config) []tracing.Option {
	opts := []tracing.Option{
		tracing.WithServiceName(cfg.OTLPServiceName),
		tracing.WithEndpoint(cfg.OTLPEndpoint),
		tracing.WithSampleRate(cfg.TraceSampleRate),
	}
	if !cfg.OTLPInsecure {
		opts = append(opts, tracing.WithSecure())
	}
	return opts
}

// newCache picks Redis when a URL is configured, the in-memory cache when
// cache_size is positive, and no cache otherwise.
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	noop := func() {}
	switch {
	case cfg.RedisURL != "":
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		rc := cache.NewRedis(client,
			cache.WithTTL(time.Duration(cfg.CacheTTLSeconds)*time.Second),
			cache.WithPrefix(cfg.RedisPrefix),
			cache.WithLogger(logger.Named("cache")),
		)
		return rc, func() { _ = rc.Close() }, nil
	case cfg.CacheSize > 0:
		return cache.NewMemory(cache.WithMaxSize(cfg.CacheSize)), noop, nil
	default:
		return nil, noop, nil
	}
}

// newHandler builds the router: business API first (it installs the
// middleware stack), then the docs routes, all behind a server span.
func newHandler(ctx context.Context, svc *app.Service, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	apiServer := api.NewServer(svc, svc,
		api.WithAllowedOrigins(cfg.AllowedOrigins()),
		api.WithLogger(logger.Named("http")),
	)
	apiServer.Register(ctx, r)

	swagger.Register(ctx, r)

	return tracing.WrapHandler("churn-api", r)
}
