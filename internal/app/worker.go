package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	promHandler "github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/worker"
)

type WorkerDeps struct {
	Config   *config.Config
	Store    repository.Store
	Broker   messaging.Broker
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Checks   map[string]health.Pinger
}

// Worker delivers outbox events and prunes delivered ones on a schedule.
type Worker struct {
	processor *worker.OutboxProcessor
	cleanup   *worker.OutboxCleanupWorker
	schedule  string
	engine    *gin.Engine
	logger    *logger.Logger
}

func NewWorker(d WorkerDeps) (*Worker, error) {
	cfg := d.Config

	processor, err := worker.NewOutboxProcessor(d.Store, d.Broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		MaxRetries:    cfg.Outbox.MaxRetries,
		ChannelPrefix: cfg.Redis.ChannelPrefix,
	}, d.Logger, d.Metrics)
	if err != nil {
		return nil, err
	}

	schedule := cfg.Outbox.CleanupSchedule
	if schedule == "" {
		schedule = worker.DefaultCleanupSchedule
	}

	checks := map[string]health.Pinger{"database": d.Store}
	for name, c := range d.Checks {
		checks[name] = c
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())
	health.NewHandler(checks).RegisterRoutes(engine)
	promHandler.New(d.Gatherer).RegisterRoutes(engine)

	return &Worker{
		processor: processor,
		cleanup:   worker.NewOutboxCleanupWorker(d.Store.Outbox(), cfg.Outbox.Retention, d.Logger, d.Metrics),
		schedule:  schedule,
		engine:    engine,
		logger:    d.Logger,
	}, nil
}

// Handler serves health and metrics for the worker process.
func (w *Worker) Handler() *gin.Engine {
	return w.engine
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	c := cron.New(cron.WithSeconds())
	if _, err := w.cleanup.Schedule(ctx, c, w.schedule); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", w.schedule, err)
	}
	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	w.logger.Info("Outbox cleanup scheduled", "schedule", w.schedule)
	w.processor.Start(ctx)
	return nil
}
