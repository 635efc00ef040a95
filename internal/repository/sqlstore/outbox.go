package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type outboxRepository struct {
	base
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, aggregate_id, payload, status, retry_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := r.now()
	event.CreatedAt = now
	event.UpdatedAt = now
	event.Status = model.OutboxStatusPending

	_, err := r.exec(ctx, query,
		event.ID,
		event.EventType,
		event.AggregateID,
		[]byte(event.Payload),
		event.Status,
		event.RetryCount,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, event_type, aggregate_id, payload, status, error_message, retry_count,
			retry_at, created_at, processed_at, updated_at
		FROM outbox_events
		WHERE status IN (?, ?)
		AND (retry_at IS NULL OR retry_at <= ?)
		ORDER BY created_at ASC
		LIMIT ?
		FOR UPDATE SKIP LOCKED`

	events := []*model.OutboxEvent{}
	err := r.selectAll(ctx, &events, query,
		model.OutboxStatusPending, model.OutboxStatusFailed, r.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkAsProcessed(ctx context.Context, id uuid.UUID) error {
	now := r.now()
	query := `
		UPDATE outbox_events
		SET status = ?, error_message = NULL, processed_at = ?, updated_at = ?
		WHERE id = ?`
	return r.update(ctx, query, model.OutboxStatusProcessed, now, now, id)
}

func (r *outboxRepository) MarkAsFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = ?, error_message = ?, retry_count = retry_count + 1, retry_at = ?, updated_at = ?
		WHERE id = ?`
	return r.update(ctx, query, model.OutboxStatusFailed, errMsg, retryAt, r.now(), id)
}

func (r *outboxRepository) MarkAsDead(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE outbox_events
		SET status = ?, error_message = ?, retry_count = retry_count + 1, retry_at = NULL, updated_at = ?
		WHERE id = ?`
	return r.update(ctx, query, model.OutboxStatusDead, errMsg, r.now(), id)
}

func (r *outboxRepository) update(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update outbox event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("outbox event: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = ?
		AND processed_at < ?`
	result, err := r.exec(ctx, query, model.OutboxStatusProcessed, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}

	return result.RowsAffected()
}
