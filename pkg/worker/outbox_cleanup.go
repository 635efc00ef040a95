package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// DefaultCleanupSchedule runs the cleanup at minute 15 of every hour.
const DefaultCleanupSchedule = "0 15 * * * *"

// OutboxCleanupWorker deletes delivered outbox events older than the
// retention window. Failed and dead events are kept for inspection.
type OutboxCleanupWorker struct {
	repo      repository.OutboxRepository
	retention time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retention time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:      repo,
		retention: retention,
		logger:    logger,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Schedule registers the cleanup on c using a cron spec with seconds.
func (w *OutboxCleanupWorker) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if _, err := w.Cleanup(ctx); err != nil {
			w.logger.Error(err, "Error cleaning up outbox events")
		}
	})
}

func (w *OutboxCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		w.metrics.DatabaseOperations.WithLabelValues("delete_processed", "error").Inc()
		return 0, fmt.Errorf("failed to cleanup outbox events: %w", err)
	}
	w.metrics.DatabaseOperations.WithLabelValues("delete_processed", "success").Inc()

	if rows > 0 {
		w.logger.Info("Cleaned up outbox events", "deleted", rows, "cutoff", cutoff)
	}
	return rows, nil
}
