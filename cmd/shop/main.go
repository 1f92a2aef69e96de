package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/loyalty-shop/internal/cart"
	"github.com/noah-isme/loyalty-shop/internal/catalog"
	"github.com/noah-isme/loyalty-shop/internal/checkout"
	"github.com/noah-isme/loyalty-shop/internal/config"
	"github.com/noah-isme/loyalty-shop/internal/events"
	"github.com/noah-isme/loyalty-shop/internal/loyalty"
	"github.com/noah-isme/loyalty-shop/internal/obs"
	"github.com/noah-isme/loyalty-shop/internal/resilience"
	"github.com/noah-isme/loyalty-shop/internal/session"
	"github.com/noah-isme/loyalty-shop/internal/shop"
	"github.com/noah-isme/loyalty-shop/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel, os.Stderr).With().
		Str("env", cfg.AppEnv).
		Str("service", "loyalty-shop").
		Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		if _, err := obs.ServeMetrics(ctx, cfg.MetricsAddr, logger); err != nil {
			logger.Error().Err(err).Msg("metrics listener disabled")
		}
	}

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "loyalty-shop",
			Endpoint:      cfg.TracingEndpoint,
			Exporter:      cfg.TracingExporter,
			SamplingRatio: cfg.TracingSamplingRatio,
			Environment:   cfg.AppEnv,
			BackendURL:    cfg.LoyaltyBaseURL,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var cache *catalog.Cache
	if cfg.CacheEnabled() {
		rdb, err := newRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			logger.Error().Err(err).Msg("redis unavailable, catalog cache disabled")
		} else {
			defer func() { _ = rdb.Close() }()
			cache = catalog.NewCache(rdb, cfg.CatalogCacheTTL)
		}
	}

	breaker := resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
		WithTarget("loyalty").
		WithLogger(logger)
	client, err := loyalty.New(loyalty.Options{
		BaseURL:        cfg.LoyaltyBaseURL,
		Timeout:        cfg.HTTPTimeout,
		GetMaxAttempts: cfg.GetMaxAttempts,
		RetryBackoff:   cfg.RetryBackoff,
		Breaker:        breaker,
		Logger:         logger,
		Metrics:        obs.NewClientMetrics(cfg.MetricsNamespace, nil),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise loyalty client")
	}

	bus := &events.Bus{Notifiers: []events.Notifier{
		events.MetricsNotifier{},
		events.LogNotifier{Logger: logger},
	}}
	c := cart.New()
	screen := view.NewScreen()
	ctrl := shop.New(shop.Config{
		Session:  session.New(session.Config{Backend: client, Cart: c, Bus: bus, Logger: logger}),
		Catalog:  catalog.NewService(catalog.ServiceConfig{Source: client, Cache: cache, Logger: logger}),
		Cart:     c,
		Checkout: checkout.NewManager(checkout.Config{Cart: c, Submitter: client, Bus: bus, Logger: logger}),
		Screen:   screen,
		Bus:      bus,
		Logger:   logger,
	})

	if err := run(ctx, ctrl, screen); err != nil {
		logger.Error().Err(err).Msg("read input")
		os.Exit(1)
	}
}

func run(ctx context.Context, ctrl *shop.Controller, screen *view.Screen) error {
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	screen.SetResult(shop.HelpText)
	if err := render(out, screen); err != nil {
		return err
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if err := ctrl.Exec(ctx, line); err != nil {
				if errors.Is(err, shop.ErrQuit) {
					return nil
				}
				return err
			}
			if err := render(out, screen); err != nil {
				return err
			}
		}
	}
}

func render(out *bufio.Writer, screen *view.Screen) error {
	if err := screen.Render(out); err != nil {
		return err
	}
	if _, err := out.WriteString("> "); err != nil {
		return err
	}
	return out.Flush()
}

func newRedis(ctx context.Context, url string, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
