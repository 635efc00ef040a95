package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/pkg/circuitbreaker"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type publishedMessage struct {
	channel  string
	envelope messaging.Envelope
}

type fakeBroker struct {
	mu        sync.Mutex
	published []publishedMessage
	calls     int
	err       error
}

func (b *fakeBroker) Publish(_ context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, publishedMessage{channel: channel, envelope: message.(messaging.Envelope)})
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBroker) Close() error { return nil }

type processorEnv struct {
	store     *memory.Store
	broker    *fakeBroker
	processor *OutboxProcessor
	metrics   *metrics.Metrics
	now       time.Time
}

func newProcessorEnv(t *testing.T) *processorEnv {
	env := &processorEnv{
		store:   memory.New(),
		broker:  &fakeBroker{},
		metrics: metrics.NewMetrics("test", prometheus.NewRegistry()),
		now:     time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	env.store.SetClock(func() time.Time { return env.now })

	p, err := NewOutboxProcessor(env.store, env.broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		MaxRetries:    3,
		ChannelPrefix: "clinic.events",
	}, logger.Nop(), env.metrics)
	require.NoError(t, err)
	p.now = func() time.Time { return env.now }
	env.processor = p
	return env
}

func (e *processorEnv) addEvent(t *testing.T, eventType string, aggregateID int64) *model.OutboxEvent {
	payload, err := json.Marshal(map[string]int64{"appointment_id": aggregateID})
	require.NoError(t, err)
	event := &model.OutboxEvent{EventType: eventType, AggregateID: aggregateID, Payload: payload}
	require.NoError(t, e.store.Outbox().Create(context.Background(), event))
	return event
}

func TestNewOutboxProcessor_InvalidConfig(t *testing.T) {
	_, err := NewOutboxProcessor(memory.New(), &fakeBroker{}, OutboxProcessorConfig{}, logger.Nop(), nil)
	assert.Error(t, err)
}

func TestOutboxProcessor_PublishesPendingEvents(t *testing.T) {
	env := newProcessorEnv(t)
	first := env.addEvent(t, model.EventAppointmentCreated, 7)
	env.addEvent(t, model.EventAppointmentStatusChanged, 7)

	n, err := env.processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, env.broker.published, 2)
	msg := env.broker.published[0]
	assert.Equal(t, "clinic.events.appointment.created", msg.channel)
	assert.Equal(t, first.ID.String(), msg.envelope.ID)
	assert.Equal(t, int64(7), msg.envelope.AggregateID)
	assert.JSONEq(t, `{"appointment_id":7}`, string(msg.envelope.Payload))
	assert.Equal(t, "clinic.events.appointment.status_changed", env.broker.published[1].channel)

	for _, e := range env.store.OutboxEvents() {
		assert.Equal(t, model.OutboxStatusProcessed, e.Status)
		require.NotNil(t, e.ProcessedAt)
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.OutboxEventsProcessed))

	n, err = env.processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, env.broker.published, 2)
}

func TestOutboxProcessor_FailedEventRetriesLater(t *testing.T) {
	env := newProcessorEnv(t)
	env.addEvent(t, model.EventUserCreated, 3)
	env.broker.err = errors.New("connection refused")

	n, err := env.processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, env.broker.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.OutboxRetries.WithLabelValues(model.EventUserCreated)))

	events := env.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusFailed, events[0].Status)
	assert.Equal(t, 1, events[0].RetryCount)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Contains(t, *events[0].ErrorMessage, "connection refused")
	require.NotNil(t, events[0].RetryAt)
	assert.True(t, events[0].RetryAt.After(env.now))

	// not due yet
	_, err = env.processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, env.broker.calls)

	env.now = env.now.Add(time.Minute)
	env.broker.err = nil
	n, err = env.processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.OutboxStatusProcessed, env.store.OutboxEvents()[0].Status)
}

func TestOutboxProcessor_DeadAfterMaxRetries(t *testing.T) {
	env := newProcessorEnv(t)
	env.addEvent(t, model.EventUserRoleAssigned, 4)
	env.broker.err = errors.New("connection refused")

	for i := 0; i < 3; i++ {
		_, err := env.processor.ProcessOnce(context.Background())
		require.NoError(t, err)
		env.now = env.now.Add(time.Hour)
	}

	events := env.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusDead, events[0].Status)
	assert.Equal(t, 3, events[0].RetryCount)
	assert.Nil(t, events[0].RetryAt)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.OutboxEventsDead))

	calls := env.broker.calls
	_, err := env.processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, calls, env.broker.calls)
}

func TestOutboxProcessor_OpenBreakerSkipsRetries(t *testing.T) {
	env := newProcessorEnv(t)
	env.addEvent(t, model.EventUserCreated, 1)
	env.broker.err = circuitbreaker.ErrOpen

	_, err := env.processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, env.broker.calls)
	assert.Equal(t, model.OutboxStatusFailed, env.store.OutboxEvents()[0].Status)
}

func TestOutboxProcessor_RetryBackoff(t *testing.T) {
	p := &OutboxProcessor{config: OutboxProcessorConfig{RetryDelay: time.Second}}

	assert.Equal(t, time.Second, p.retryBackoff(0))
	assert.Equal(t, 4*time.Second, p.retryBackoff(2))
	assert.Equal(t, time.Hour, p.retryBackoff(40))
}
