package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/testutil"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type recordingBroker struct {
	mu       sync.Mutex
	channels []string
}

func (b *recordingBroker) Publish(_ context.Context, channel string, _ interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	return nil
}

func (b *recordingBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBroker) Close() error { return nil }

func (b *recordingBroker) published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.channels...)
}

func workerConfig() *config.Config {
	return &config.Config{
		Redis: config.RedisConfig{ChannelPrefix: "clinic.events"},
		Outbox: config.OutboxConfig{
			BatchSize:     10,
			PollInterval:  10 * time.Millisecond,
			RetryAttempts: 1,
			RetryDelay:    time.Millisecond,
			MaxRetries:    3,
			Retention:     time.Hour,
		},
	}
}

func TestWorker_DeliversEventsUntilCancelled(t *testing.T) {
	f := testutil.NewFixture(t)
	payload, err := json.Marshal(model.UserCreatedPayload{UserID: f.PatientID, Role: model.RolePatient})
	require.NoError(t, err)
	require.NoError(t, f.Store.Outbox().Create(context.Background(), &model.OutboxEvent{
		EventType: model.EventUserCreated, AggregateID: f.PatientID, Payload: payload,
	}))

	reg := prometheus.NewRegistry()
	broker := &recordingBroker{}
	w, err := NewWorker(WorkerDeps{
		Config:   workerConfig(),
		Store:    f.Store,
		Broker:   broker,
		Logger:   f.Logger,
		Metrics:  metrics.NewMetrics("test", reg),
		Gatherer: reg,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return len(broker.published()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{messaging.Channel("clinic.events", model.EventUserCreated)}, broker.published())
}

func TestWorker_InvalidSchedule(t *testing.T) {
	f := testutil.NewFixture(t)
	cfg := workerConfig()
	cfg.Outbox.CleanupSchedule = "every now and then"

	reg := prometheus.NewRegistry()
	w, err := NewWorker(WorkerDeps{
		Config: cfg, Store: f.Store, Broker: &recordingBroker{}, Logger: f.Logger,
		Metrics: metrics.NewMetrics("test", reg), Gatherer: reg,
	})
	require.NoError(t, err)
	assert.Error(t, w.Run(context.Background()))
}

func TestWorker_HealthAndMetrics(t *testing.T) {
	f := testutil.NewFixture(t)
	reg := prometheus.NewRegistry()
	w, err := NewWorker(WorkerDeps{
		Config: workerConfig(), Store: f.Store, Broker: &recordingBroker{}, Logger: f.Logger,
		Metrics: metrics.NewMetrics("test", reg), Gatherer: reg,
	})
	require.NoError(t, err)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		w.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
