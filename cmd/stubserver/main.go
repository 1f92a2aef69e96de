package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/loyalty-shop/internal/config"
	"github.com/noah-isme/loyalty-shop/internal/health"
	"github.com/noah-isme/loyalty-shop/internal/obs"
	"github.com/noah-isme/loyalty-shop/internal/stubserver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().
		Str("env", cfg.AppEnv).
		Str("service", "loyalty-stub").
		Logger()

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "loyalty-stub",
			Endpoint:      cfg.TracingEndpoint,
			Exporter:      cfg.TracingExporter,
			SamplingRatio: cfg.TracingSamplingRatio,
			Environment:   cfg.AppEnv,
			BackendURL:    "http://localhost" + cfg.StubAddr(),
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			cfg.TracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(opts)
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	srv, err := stubserver.New(stubserver.Config{
		Store:               stubserver.SeededStore(),
		Logger:              logger,
		Metrics:             obs.NewHTTPMetrics(cfg.MetricsNamespace+"_stub", obs.ParseBucketsCSV(cfg.MetricsBucketsMS), nil),
		Tracing:             cfg.TracingEnabled,
		Redis:               redisClient,
		RateLimit:           cfg.StubRateLimit,
		BodyLimit:           cfg.StubBodyLimitBytes,
		AllowedOrigins:      cfg.CORSAllowedOrigins,
		CheckoutLimit:       cfg.StubCheckoutLimit,
		CheckoutWindow:      cfg.StubCheckoutWindow,
		SkipReadinessChecks: cfg.ReadinessProbeDisabled,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise stub server")
	}

	httpServer := &http.Server{
		Addr:              cfg.StubAddr(),
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("stub server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("stub server failed")
		}
	case <-ctx.Done():
	}

	health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("stub server stopped")
}
