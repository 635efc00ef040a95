package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/app"
	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := app.NewLogger(cfg.Logging)
	log.Logger = logger.Zerolog()
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(cfg.Metrics.Namespace, reg)

	store, closeStore, err := app.OpenStore(ctx, cfg, app.NewHasher(cfg.Users), logger)
	if err != nil {
		logger.Fatal(err, "failed to open store")
	}
	defer closeStore()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, logger.Zerolog(), m)
	if err != nil {
		logger.Fatal(err, "failed to configure Redis")
	}
	defer broker.Close()

	if err := broker.Ping(ctx); err != nil {
		logger.Warn("Redis is not reachable yet, events stay pending", "error", err.Error())
	}

	w, err := app.NewWorker(app.WorkerDeps{
		Config:   cfg,
		Store:    store,
		Broker:   broker,
		Logger:   logger,
		Metrics:  m,
		Gatherer: reg,
		Checks:   map[string]health.Pinger{"redis": broker},
	})
	if err != nil {
		logger.Fatal(err, "failed to create worker")
	}

	srv := &http.Server{
		Addr:    cfg.Metrics.WorkerAddr,
		Handler: w.Handler(),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "Metrics server stopped")
		}
	}()

	logger.Info("Starting outbox worker", "metrics_addr", srv.Addr)
	if err := w.Run(ctx); err != nil {
		logger.Error(err, "Worker stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "Metrics server forced to shutdown")
	}
	logger.Info("Worker exited properly")
}
