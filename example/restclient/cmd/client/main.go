package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kroma-labs/sentinel-rest/example/restclient/internal/config"
	"github.com/kroma-labs/sentinel-rest/example/restclient/internal/orders"
	"github.com/kroma-labs/sentinel-rest/example/restclient/internal/telemetry"
	"github.com/kroma-labs/sentinel-rest/httpclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"go.opentelemetry.io/otel"
)

func main() {
	ctx := context.Background()
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg := config.Load()

	// 1. Setup OpenTelemetry (Tracing + Metrics)
	providers, err := telemetry.Setup(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to setup OTel")
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("telemetry shutdown")
		}
	}()

	// 2. Build the executor stack: pooled handles, rate limit, breaker
	handles := httpclient.NewMultiHandleExecutor(
		httpclient.WithExecutorLogger(logger),
		httpclient.WithExecutorMeterProvider(otel.GetMeterProvider()),
	)
	prometheus.MustRegister(httpclient.NewHandleCollector(handles, "orders"))

	limited := httpclient.NewRateLimitedExecutor(handles, httpclient.RateLimitConfig{
		RequestsPerSecond: 50,
		Burst:             5,
		WaitOnLimit:       true,
		PerDestination:    true,
	})

	breakerCfg := httpclient.DefaultBreakerConfig()
	if cfg.RedisAddr != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		defer rdb.Close()
		breakerCfg = httpclient.DistributedBreakerConfig(httpclient.NewRedisStore(rdb))
	}
	breakerCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("breaker state changed")
	}
	exec := httpclient.NewBreakerExecutor(limited, "orders-api", breakerCfg,
		httpclient.WithBreakerMeterProvider(otel.GetMeterProvider()))

	// 3. Build the client
	client, err := httpclient.New(
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithAddresses(cfg.Addresses...),
		httpclient.WithConnectionTimeout(2*time.Second),
		httpclient.WithOperationTimeout(10*time.Second),
		httpclient.WithExecutor(exec),
		httpclient.WithServiceName("orders-api"),
		httpclient.WithLogger(logger.Level(zerolog.DebugLevel)),
		httpclient.WithDebug(cfg.Debug),
		httpclient.WithMiddleware(
			httpclient.RequestIDMiddleware("X-Request-ID"),
			httpclient.UserAgentMiddleware(config.ServiceName+"/"+config.ServiceVersion),
		),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create client")
	}
	defer client.Close()

	svc := orders.NewService(client)

	// 4. Start Prometheus Metrics Server
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: config.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info().Str("addr", config.MetricsPort).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("metrics server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(config.OperationInterval) * time.Second)
	defer ticker.Stop()

	fmt.Println("REST client example started, metrics on http://localhost:2112/metrics")

	tracer := otel.Tracer("example-app")
	for {
		select {
		case <-ticker.C:
			ctx, span := tracer.Start(ctx, "orders-sync")
			run(ctx, logger, svc)
			span.End()

		case <-sigChan:
			logger.Info().Msg("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error().Err(err).Msg("metrics server shutdown")
			}
			return
		}
	}
}

func run(ctx context.Context, logger zerolog.Logger, svc *orders.Service) {
	created, err := svc.Create(ctx, "alice", 42.5)
	if err != nil {
		logger.Error().Err(err).Msg("create failed")
		return
	}

	pending, err := svc.List(ctx, "pending", 10)
	if err != nil {
		logger.Error().Err(err).Msg("list failed")
		return
	}
	logger.Info().Int("pending", len(pending)).Msg("orders listed")

	if err := svc.Cancel(ctx, created.ID); err != nil {
		logger.Error().Err(err).Msg("cancel failed")
	}
}
