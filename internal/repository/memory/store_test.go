package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

func TestWithTx_RollbackDiscardsWrites(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.WithTx(ctx, func(q repository.Queries) error {
		if _, err := q.Users().Create(ctx, &model.User{UserName: "asha", Email: "asha@example.com", IsActive: true}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	n, err := store.Users().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWithTx_CommitPublishesWrites(t *testing.T) {
	store := New()
	ctx := context.Background()

	var id int64
	err := store.WithTx(ctx, func(q repository.Queries) error {
		var err error
		id, err = q.Users().Create(ctx, &model.User{UserName: "asha", Email: "asha@example.com", Name: "Asha", IsActive: true})
		return err
	})
	require.NoError(t, err)

	user, err := store.Users().GetActive(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)
}

func TestUsers_DuplicateUserName(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.Users().Create(ctx, &model.User{UserName: "asha", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = store.Users().Create(ctx, &model.User{UserName: "ASHA", Email: "b@example.com"})
	assert.Error(t, err)
}

func TestAppointments_ListOrderingAndSoftDelete(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := store.Appointments().Create(ctx, &model.Appointment{
			PatientID:            1,
			DoctorID:             2,
			AppointmentTimestamp: base.Add(time.Duration(i) * time.Hour),
			Status:               model.AppointmentStatusRequested,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, store.SoftDeleteAppointment(ids[2]))

	list, err := store.Appointments().List(ctx, model.AppointmentFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[1], list[0].ID)
	assert.Equal(t, ids[0], list[1].ID)

	_, err = store.Appointments().GetForUpdate(ctx, ids[2])
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAppointments_UpdateStatusKeepsNotesWhenNil(t *testing.T) {
	store := New()
	ctx := context.Background()
	notes := "bring reports"

	id, err := store.Appointments().Create(ctx, &model.Appointment{Status: model.AppointmentStatusRequested, Notes: &notes})
	require.NoError(t, err)

	require.NoError(t, store.Appointments().UpdateStatus(ctx, id, model.AppointmentStatusConfirmed, nil))
	a, err := store.Appointments().GetForUpdate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, a.Status)
	require.NotNil(t, a.Notes)
	assert.Equal(t, "bring reports", *a.Notes)
}

func TestOutbox_Lifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	event := &model.OutboxEvent{EventType: model.EventAppointmentCreated, Payload: []byte(`{}`)}
	require.NoError(t, store.Outbox().Create(ctx, event))

	retryAt := now.Add(time.Minute)
	require.NoError(t, store.Outbox().MarkAsFailed(ctx, event.ID, "redis down", &retryAt))

	pending, err := store.Outbox().GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	now = now.Add(2 * time.Minute)
	pending, err = store.Outbox().GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)

	require.NoError(t, store.Outbox().MarkAsProcessed(ctx, event.ID))
	deleted, err := store.Outbox().DeleteProcessedBefore(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
