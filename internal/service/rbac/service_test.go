package rbac

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/testutil"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func change(userID int64, role string) *model.RoleChangeRequest {
	return &model.RoleChangeRequest{UserID: strconv.FormatInt(userID, 10), Role: role}
}

func roleNames(t *testing.T, f *testutil.Fixture, userID int64) []string {
	names, err := f.Store.RBAC().ListUserRoleNames(context.Background(), userID)
	require.NoError(t, err)
	return names
}

func TestAssignRoleTo(t *testing.T) {
	ctx := context.Background()

	t.Run("admin assigns a new role", func(t *testing.T) {
		f := testutil.NewFixture(t)
		svc := NewService(f.Store, f.Logger, f.Metrics)

		id, err := svc.AssignRoleTo(ctx, f.Actor(t, f.AdminID), change(f.StaffID, " Clinic_Receptionist "))
		require.NoError(t, err)
		assert.Equal(t, f.StaffID, id)
		assert.ElementsMatch(t, []string{"staff", "clinic_receptionist"}, roleNames(t, f, f.StaffID))
		assert.Len(t, f.Events(t, model.EventUserRoleAssigned), 1)
	})

	t.Run("duplicate edge is rejected", func(t *testing.T) {
		f := testutil.NewFixture(t)
		svc := NewService(f.Store, f.Logger, f.Metrics)

		_, err := svc.AssignRoleTo(ctx, f.Actor(t, f.AdminID), change(f.DoctorID, "doctor"))
		require.Error(t, err)
		appErr := apperrors.As(err)
		assert.Equal(t, apperrors.ErrConflict, appErr.Code)
		assert.Equal(t, "User already has this role", appErr.Message)
		assert.Empty(t, f.Events(t, model.EventUserRoleAssigned))
	})

	t.Run("caller without manage_users", func(t *testing.T) {
		f := testutil.NewFixture(t)
		svc := NewService(f.Store, f.Logger, f.Metrics)

		_, err := svc.AssignRoleTo(ctx, f.Actor(t, f.ReceptionistID), change(f.StaffID, "doctor"))
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
		assert.Equal(t, []string{"staff"}, roleNames(t, f, f.StaffID))
	})

	t.Run("unknown target and role", func(t *testing.T) {
		f := testutil.NewFixture(t)
		svc := NewService(f.Store, f.Logger, f.Metrics)
		admin := f.Actor(t, f.AdminID)

		_, err := svc.AssignRoleTo(ctx, admin, change(9999, "doctor"))
		assert.Equal(t, "Target user not found", apperrors.As(err).Message)

		_, err = svc.AssignRoleTo(ctx, admin, change(f.StaffID, "janitor"))
		assert.Equal(t, "Role not found", apperrors.As(err).Message)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("malformed input", func(t *testing.T) {
		f := testutil.NewFixture(t)
		svc := NewService(f.Store, f.Logger, f.Metrics)
		admin := f.Actor(t, f.AdminID)

		_, err := svc.AssignRoleTo(ctx, admin, &model.RoleChangeRequest{UserID: "", Role: "doctor"})
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

		_, err = svc.AssignRoleTo(ctx, admin, &model.RoleChangeRequest{UserID: "seven", Role: "doctor"})
		assert.Equal(t, "Invalid user ID", apperrors.As(err).Message)
	})
}

func TestRemoveRoleOf(t *testing.T) {
	ctx := context.Background()

	t.Run("removes one of several roles", func(t *testing.T) {
		f := testutil.NewFixture(t)
		svc := NewService(f.Store, f.Logger, f.Metrics)

		_, err := svc.RemoveRoleOf(ctx, f.Actor(t, f.AdminID), change(f.ReceptionistID, "clinic_receptionist"))
		require.NoError(t, err)
		assert.Equal(t, []string{"staff"}, roleNames(t, f, f.ReceptionistID))
		assert.Len(t, f.Events(t, model.EventUserRoleRemoved), 1)
	})

	t.Run("last role is kept", func(t *testing.T) {
		f := testutil.NewFixture(t)
		svc := NewService(f.Store, f.Logger, f.Metrics)

		_, err := svc.RemoveRoleOf(ctx, f.Actor(t, f.AdminID), change(f.DoctorID, "doctor"))
		require.Error(t, err)
		assert.Equal(t, "User must have at least one role", apperrors.As(err).Message)
		assert.Equal(t, []string{"doctor"}, roleNames(t, f, f.DoctorID))
	})

	t.Run("admin cannot drop own admin role", func(t *testing.T) {
		f := testutil.NewFixture(t)
		svc := NewService(f.Store, f.Logger, f.Metrics)
		admin := f.Actor(t, f.AdminID)

		_, err := svc.AssignRoleTo(ctx, admin, change(f.AdminID, "staff"))
		require.NoError(t, err)

		_, err = svc.RemoveRoleOf(ctx, admin, change(f.AdminID, "ADMIN"))
		require.Error(t, err)
		assert.Equal(t, "Admin cannot remove their own admin role", apperrors.As(err).Message)
		assert.ElementsMatch(t, []string{"admin", "staff"}, roleNames(t, f, f.AdminID))

		_, err = svc.RemoveRoleOf(ctx, admin, change(f.AdminID, "staff"))
		require.NoError(t, err)
	})

	t.Run("another admin may remove the admin role", func(t *testing.T) {
		f := testutil.NewFixture(t)
		svc := NewService(f.Store, f.Logger, f.Metrics)
		second := f.AddUser(t, "admin2", "Second Admin", model.RoleAdmin, model.RoleStaff)

		_, err := svc.RemoveRoleOf(ctx, f.Actor(t, f.AdminID), change(second, "admin"))
		require.NoError(t, err)
		assert.Equal(t, []string{"staff"}, roleNames(t, f, second))
	})

	t.Run("missing edge", func(t *testing.T) {
		f := testutil.NewFixture(t)
		svc := NewService(f.Store, f.Logger, f.Metrics)

		_, err := svc.RemoveRoleOf(ctx, f.Actor(t, f.AdminID), change(f.DoctorID, "patient"))
		require.Error(t, err)
		assert.Equal(t, "User does not have this role", apperrors.As(err).Message)
	})

	t.Run("caller without manage_users", func(t *testing.T) {
		f := testutil.NewFixture(t)
		svc := NewService(f.Store, f.Logger, f.Metrics)

		_, err := svc.RemoveRoleOf(ctx, f.Actor(t, f.DoctorID), change(f.ReceptionistID, "staff"))
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
		assert.Len(t, roleNames(t, f, f.ReceptionistID), 2)
	})
}
