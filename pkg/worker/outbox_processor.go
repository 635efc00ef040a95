package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/circuitbreaker"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const maxRetryBackoff = time.Hour

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts is the number of publish attempts within one poll.
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxRetries is the number of failed polls after which an event is dead.
	MaxRetries    int
	ChannelPrefix string
}

func (c OutboxProcessorConfig) validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("BatchSize must be greater than 0")
	case c.PollInterval <= 0:
		return errors.New("PollInterval must be greater than 0")
	case c.RetryAttempts <= 0:
		return errors.New("RetryAttempts must be greater than 0")
	case c.RetryDelay <= 0:
		return errors.New("RetryDelay must be greater than 0")
	case c.MaxRetries <= 0:
		return errors.New("MaxRetries must be greater than 0")
	}
	return nil
}

// OutboxProcessor delivers outbox events to the broker. Delivery is at least
// once: a crash between publishing and committing republishes the batch.
type OutboxProcessor struct {
	store   repository.Store
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	store repository.Store,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}

	return &OutboxProcessor{
		store:   store,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "poll_interval", p.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessOnce publishes one batch of due events and records each outcome.
// It returns the number of events delivered.
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	delivered := 0
	err := p.store.WithTx(ctx, func(q repository.Queries) error {
		events, err := q.Outbox().GetPendingEvents(ctx, p.config.BatchSize)
		if err != nil {
			p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
			return fmt.Errorf("failed to get pending events: %w", err)
		}
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()
		p.metrics.OutboxQueueSize.Set(float64(len(events)))

		for _, event := range events {
			ok, err := p.processEvent(ctx, q.Outbox(), event)
			if err != nil {
				return err
			}
			if ok {
				delivered++
			}
		}
		return nil
	})
	return delivered, err
}

func (p *OutboxProcessor) processEvent(ctx context.Context, repo repository.OutboxRepository, event *model.OutboxEvent) (bool, error) {
	pubErr := p.publish(ctx, event)
	if pubErr == nil {
		if err := repo.MarkAsProcessed(ctx, event.ID); err != nil {
			p.metrics.DatabaseOperations.WithLabelValues("mark_processed", "error").Inc()
			return false, fmt.Errorf("failed to mark event %s processed: %w", event.ID, err)
		}
		p.metrics.OutboxEventsProcessed.Inc()
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	p.metrics.OutboxEventsFailed.Inc()
	msg := pubErr.Error()

	if event.RetryCount+1 >= p.config.MaxRetries {
		p.logger.Error(pubErr, "Giving up on outbox event",
			"event_id", event.ID.String(),
			"event_type", event.EventType,
			"retry_count", event.RetryCount+1)
		if err := repo.MarkAsDead(ctx, event.ID, msg); err != nil {
			p.metrics.DatabaseOperations.WithLabelValues("mark_dead", "error").Inc()
			return false, fmt.Errorf("failed to mark event %s dead: %w", event.ID, err)
		}
		p.metrics.OutboxEventsDead.Inc()
		return false, nil
	}

	retryAt := p.now().Add(p.retryBackoff(event.RetryCount))
	p.logger.Warn("Failed to publish outbox event",
		"event_id", event.ID.String(),
		"event_type", event.EventType,
		"error", msg,
		"retry_at", retryAt)
	if err := repo.MarkAsFailed(ctx, event.ID, msg, &retryAt); err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("mark_failed", "error").Inc()
		return false, fmt.Errorf("failed to mark event %s failed: %w", event.ID, err)
	}
	return false, nil
}

func (p *OutboxProcessor) publish(ctx context.Context, event *model.OutboxEvent) error {
	envelope := messaging.Envelope{
		ID:          event.ID.String(),
		Type:        event.EventType,
		AggregateID: event.AggregateID,
		Payload:     event.Payload,
		OccurredAt:  event.CreatedAt,
	}
	channel := messaging.Channel(p.config.ChannelPrefix, event.EventType)

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.config.RetryDelay), uint64(p.config.RetryAttempts-1)),
		ctx,
	)
	return backoff.RetryNotify(func() error {
		err := p.broker.Publish(ctx, channel, envelope)
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(error, time.Duration) {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	})
}

// retryBackoff doubles RetryDelay for every earlier failure, capped at an hour.
func (p *OutboxProcessor) retryBackoff(failures int) time.Duration {
	d := p.config.RetryDelay
	for i := 0; i < failures && d < maxRetryBackoff; i++ {
		d *= 2
	}
	if d > maxRetryBackoff {
		d = maxRetryBackoff
	}
	return d
}
