package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type userRepository struct{ view }

func (r *userRepository) GetActive(ctx context.Context, id int64) (*model.User, error) {
	var out *model.User
	err := r.read(func(st *state) error {
		u, ok := st.users[id]
		if !ok || !u.IsActive {
			return fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepository) GetByUserName(ctx context.Context, userName string) (*model.User, error) {
	var out *model.User
	err := r.read(func(st *state) error {
		for _, u := range st.users {
			if u.UserName == userName {
				u := u
				out = &u
				return nil
			}
		}
		return fmt.Errorf("user: %w", repository.ErrNotFound)
	})
	return out, err
}

func (r *userRepository) Lock(ctx context.Context, id int64) error {
	return r.read(func(st *state) error {
		if _, ok := st.users[id]; !ok {
			return fmt.Errorf("user %d: %w", id, repository.ErrNotFound)
		}
		return nil
	})
}

func (r *userRepository) Create(ctx context.Context, user *model.User) (int64, error) {
	err := r.write(func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.UserName, user.UserName) || strings.EqualFold(u.Email, user.Email) {
				return fmt.Errorf("failed to create user: duplicate user_name or email")
			}
		}
		now := r.now()
		user.ID = st.nextID()
		user.CreatedAt = now
		user.UpdatedAt = now
		st.users[user.ID] = *user
		return nil
	})
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.read(func(st *state) error {
		n = len(st.users)
		return nil
	})
	return n, err
}

func (r *userRepository) ListActive(ctx context.Context) ([]*model.UserSummary, error) {
	out := []*model.UserSummary{}
	err := r.read(func(st *state) error {
		for _, u := range st.users {
			if !u.IsActive {
				continue
			}
			summary := &model.UserSummary{ID: u.ID, UserName: u.UserName, Email: u.Email, Name: u.Name, Roles: []model.RoleName{}}
			for roleID := range st.userRoles[u.ID] {
				summary.Roles = append(summary.Roles, st.roles[roleID].Name)
			}
			sort.Slice(summary.Roles, func(i, j int) bool { return summary.Roles[i] < summary.Roles[j] })
			out = append(out, summary)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *userRepository) RecordLoginFailure(ctx context.Context, id int64, failedLogins int, lockedUntil *time.Time) error {
	return r.write(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return fmt.Errorf("user %d: %w", id, repository.ErrNotFound)
		}
		u.FailedLogins = failedLogins
		u.LockedUntil = lockedUntil
		u.UpdatedAt = r.now()
		st.users[id] = u
		return nil
	})
}

func (r *userRepository) RecordLoginSuccess(ctx context.Context, id int64, at time.Time) error {
	return r.write(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return fmt.Errorf("user %d: %w", id, repository.ErrNotFound)
		}
		u.FailedLogins = 0
		u.LockedUntil = nil
		u.LastLogin = &at
		u.UpdatedAt = r.now()
		st.users[id] = u
		return nil
	})
}

type rbacRepository struct{ view }

func (r *rbacRepository) GetRoleByName(ctx context.Context, name model.RoleName) (*model.Role, error) {
	var out *model.Role
	err := r.read(func(st *state) error {
		role, ok := st.roleByName(name)
		if !ok {
			return fmt.Errorf("role %q: %w", name, repository.ErrNotFound)
		}
		out = &role
		return nil
	})
	return out, err
}

func (r *rbacRepository) ListRoles(ctx context.Context) ([]*model.Role, error) {
	out := []*model.Role{}
	err := r.read(func(st *state) error {
		for _, role := range st.roles {
			role := role
			out = append(out, &role)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r *rbacRepository) ListUserRoleNames(ctx context.Context, userID int64) ([]string, error) {
	out := []string{}
	err := r.read(func(st *state) error {
		for roleID := range st.userRoles[userID] {
			out = append(out, string(st.roles[roleID].Name))
		}
		return nil
	})
	return out, err
}

func (r *rbacRepository) ListUserPermissionNames(ctx context.Context, userID int64) ([]string, error) {
	out := []string{}
	err := r.read(func(st *state) error {
		seen := make(map[int64]struct{})
		for roleID := range st.userRoles[userID] {
			for permID := range st.rolePermissions[roleID] {
				if _, dup := seen[permID]; dup {
					continue
				}
				seen[permID] = struct{}{}
				out = append(out, string(st.permissions[permID].Name))
			}
		}
		return nil
	})
	return out, err
}

func (r *rbacRepository) UserHasRole(ctx context.Context, userID int64, role model.RoleName) (bool, error) {
	var has bool
	err := r.read(func(st *state) error {
		if target, ok := st.roleByName(role); ok {
			_, has = st.userRoles[userID][target.ID]
		}
		return nil
	})
	return has, err
}

func (r *rbacRepository) HasUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	var has bool
	err := r.read(func(st *state) error {
		_, has = st.userRoles[userID][roleID]
		return nil
	})
	return has, err
}

func (r *rbacRepository) CountUserRoles(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.read(func(st *state) error {
		n = len(st.userRoles[userID])
		return nil
	})
	return n, err
}

func (r *rbacRepository) AssignRoleToUser(ctx context.Context, userID, roleID int64) error {
	return r.write(func(st *state) error {
		if _, ok := st.users[userID]; !ok {
			return fmt.Errorf("failed to assign role: unknown user %d", userID)
		}
		if _, ok := st.roles[roleID]; !ok {
			return fmt.Errorf("failed to assign role: unknown role %d", roleID)
		}
		if _, dup := st.userRoles[userID][roleID]; dup {
			return fmt.Errorf("failed to assign role: duplicate assignment")
		}
		if st.userRoles[userID] == nil {
			st.userRoles[userID] = make(map[int64]struct{})
		}
		st.userRoles[userID][roleID] = struct{}{}
		return nil
	})
}

func (r *rbacRepository) RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error {
	return r.write(func(st *state) error {
		if _, ok := st.userRoles[userID][roleID]; !ok {
			return fmt.Errorf("role assignment: %w", repository.ErrNotFound)
		}
		delete(st.userRoles[userID], roleID)
		return nil
	})
}

func (r *rbacRepository) EnsureRole(ctx context.Context, name model.RoleName, description string) (int64, error) {
	var id int64
	err := r.write(func(st *state) error {
		if role, ok := st.roleByName(name); ok {
			id = role.ID
			return nil
		}
		id = st.nextID()
		st.roles[id] = model.Role{ID: id, Name: name, Description: description}
		return nil
	})
	return id, err
}

func (r *rbacRepository) EnsurePermission(ctx context.Context, name model.PermissionName, description string) (int64, error) {
	var id int64
	err := r.write(func(st *state) error {
		for _, p := range st.permissions {
			if p.Name == name {
				id = p.ID
				return nil
			}
		}
		id = st.nextID()
		st.permissions[id] = model.Permission{ID: id, Name: name, Description: description}
		return nil
	})
	return id, err
}

func (r *rbacRepository) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	return r.write(func(st *state) error {
		if st.rolePermissions[roleID] == nil {
			st.rolePermissions[roleID] = make(map[int64]struct{})
		}
		st.rolePermissions[roleID][permissionID] = struct{}{}
		return nil
	})
}

type appointmentRepository struct{ view }

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) (int64, error) {
	err := r.write(func(st *state) error {
		now := r.now()
		appointment.ID = st.nextID()
		appointment.CreatedAt = now
		appointment.UpdatedAt = now
		st.appointments[appointment.ID] = *appointment
		return nil
	})
	if err != nil {
		return 0, err
	}
	return appointment.ID, nil
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, id int64) (*model.Appointment, error) {
	var out *model.Appointment
	err := r.read(func(st *state) error {
		a, ok := st.appointments[id]
		if !ok || a.DeletedAt != nil {
			return fmt.Errorf("appointment %d: %w", id, repository.ErrNotFound)
		}
		out = &a
		return nil
	})
	return out, err
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id int64, status model.AppointmentStatus, notes *string) error {
	return r.write(func(st *state) error {
		a, ok := st.appointments[id]
		if !ok || a.DeletedAt != nil {
			return fmt.Errorf("appointment %d: %w", id, repository.ErrNotFound)
		}
		a.Status = status
		if notes != nil {
			n := *notes
			a.Notes = &n
		}
		a.UpdatedAt = r.now()
		st.appointments[id] = a
		return nil
	})
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.AppointmentDetail, error) {
	out := []*model.AppointmentDetail{}
	err := r.read(func(st *state) error {
		for _, a := range st.appointments {
			if a.DeletedAt != nil {
				continue
			}
			if filter.DoctorID != 0 && a.DoctorID != filter.DoctorID {
				continue
			}
			if filter.PatientID != 0 && a.PatientID != filter.PatientID {
				continue
			}
			out = append(out, &model.AppointmentDetail{
				Appointment: a,
				DoctorName:  st.users[a.DoctorID].Name,
				PatientName: st.users[a.PatientID].Name,
			})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppointmentTimestamp.Equal(out[j].AppointmentTimestamp) {
			return out[i].AppointmentTimestamp.After(out[j].AppointmentTimestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

type outboxRepository struct{ view }

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	return r.write(func(st *state) error {
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		now := r.now()
		event.CreatedAt = now
		event.UpdatedAt = now
		event.Status = model.OutboxStatusPending
		st.outbox = append(st.outbox, *event)
		return nil
	})
}

func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	out := []*model.OutboxEvent{}
	err := r.read(func(st *state) error {
		now := r.now()
		for _, e := range st.outbox {
			if len(out) >= limit {
				break
			}
			if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusFailed {
				continue
			}
			if e.RetryAt != nil && e.RetryAt.After(now) {
				continue
			}
			e := e
			out = append(out, &e)
		}
		return nil
	})
	return out, err
}

func (r *outboxRepository) mutate(id uuid.UUID, fn func(e *model.OutboxEvent)) error {
	return r.write(func(st *state) error {
		for i := range st.outbox {
			if st.outbox[i].ID == id {
				fn(&st.outbox[i])
				st.outbox[i].UpdatedAt = r.now()
				return nil
			}
		}
		return fmt.Errorf("outbox event: %w", repository.ErrNotFound)
	})
}

func (r *outboxRepository) MarkAsProcessed(ctx context.Context, id uuid.UUID) error {
	return r.mutate(id, func(e *model.OutboxEvent) {
		now := r.now()
		e.Status = model.OutboxStatusProcessed
		e.ErrorMessage = nil
		e.ProcessedAt = &now
	})
}

func (r *outboxRepository) MarkAsFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	return r.mutate(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &errMsg
		e.RetryCount++
		e.RetryAt = retryAt
	})
}

func (r *outboxRepository) MarkAsDead(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.mutate(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusDead
		e.ErrorMessage = &errMsg
		e.RetryCount++
		e.RetryAt = nil
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	err := r.write(func(st *state) error {
		kept := st.outbox[:0:0]
		for _, e := range st.outbox {
			if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
				deleted++
				continue
			}
			kept = append(kept, e)
		}
		st.outbox = kept
		return nil
	})
	return deleted, err
}
