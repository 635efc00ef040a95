package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// ErrNotFound is returned (wrapped) when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// All repository interfaces in one file
type (
	UserRepository interface {
		// GetActive returns an active user with its details name.
		GetActive(ctx context.Context, id int64) (*model.User, error)
		GetByUserName(ctx context.Context, userName string) (*model.User, error)
		// Lock takes a row lock on the user for the rest of the transaction.
		Lock(ctx context.Context, id int64) error
		// Create inserts the user and its details row and returns the new id.
		Create(ctx context.Context, user *model.User) (int64, error)
		Count(ctx context.Context) (int, error)
		ListActive(ctx context.Context) ([]*model.UserSummary, error)
		RecordLoginFailure(ctx context.Context, id int64, failedLogins int, lockedUntil *time.Time) error
		RecordLoginSuccess(ctx context.Context, id int64, at time.Time) error
	}

	RBACRepository interface {
		GetRoleByName(ctx context.Context, name model.RoleName) (*model.Role, error)
		ListRoles(ctx context.Context) ([]*model.Role, error)
		ListUserRoleNames(ctx context.Context, userID int64) ([]string, error)
		ListUserPermissionNames(ctx context.Context, userID int64) ([]string, error)
		UserHasRole(ctx context.Context, userID int64, role model.RoleName) (bool, error)
		HasUserRole(ctx context.Context, userID, roleID int64) (bool, error)
		CountUserRoles(ctx context.Context, userID int64) (int, error)
		AssignRoleToUser(ctx context.Context, userID, roleID int64) error
		RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error

		// Catalog maintenance used by seeding.
		EnsureRole(ctx context.Context, name model.RoleName, description string) (int64, error)
		EnsurePermission(ctx context.Context, name model.PermissionName, description string) (int64, error)
		GrantPermission(ctx context.Context, roleID, permissionID int64) error
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) (int64, error)
		// GetForUpdate returns a non-deleted appointment and locks its row.
		GetForUpdate(ctx context.Context, id int64) (*model.Appointment, error)
		// UpdateStatus sets the status and, when notes is non-nil, the notes.
		UpdateStatus(ctx context.Context, id int64, status model.AppointmentStatus, notes *string) error
		// List returns non-deleted appointments, newest appointment_timestamp first.
		List(ctx context.Context, filter model.AppointmentFilter) ([]*model.AppointmentDetail, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// GetPendingEvents returns events due for delivery, locking them when
		// called inside a transaction.
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkAsProcessed(ctx context.Context, id uuid.UUID) error
		MarkAsFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error
		MarkAsDead(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// Queries groups the repositories bound to one connection or transaction.
	Queries interface {
		Users() UserRepository
		RBAC() RBACRepository
		Appointments() AppointmentRepository
		Outbox() OutboxRepository
	}

	// Store is the persistence gateway. Every mutation runs through WithTx:
	// fn's queries share one transaction that commits when fn returns nil and
	// rolls back on error or panic.
	Store interface {
		Queries
		WithTx(ctx context.Context, fn func(q Queries) error) error
		Ping(ctx context.Context) error
	}
)
