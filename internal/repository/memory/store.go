// Package memory is an in-process repository.Store. Transactions work on a
// private copy of the data that replaces the shared state on commit, so a
// failed transaction leaves nothing behind. Transactions are serialized.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type Store struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		state: newState(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Users() repository.UserRepository {
	return &userRepository{s.direct()}
}

func (s *Store) RBAC() repository.RBACRepository {
	return &rbacRepository{s.direct()}
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{s.direct()}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{s.direct()}
}

func (s *Store) WithTx(ctx context.Context, fn func(q repository.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	q := &queries{view: view{
		read:  func(fn func(*state) error) error { return fn(working) },
		write: func(fn func(*state) error) error { return fn(working) },
		now:   s.now,
	}}
	if err := fn(q); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = working
	s.mu.Unlock()
	return nil
}

// direct binds repositories to the shared state outside any transaction.
// Writes still serialize with transactions.
func (s *Store) direct() view {
	return view{
		read: func(fn func(*state) error) error {
			s.mu.RLock()
			defer s.mu.RUnlock()
			return fn(s.state)
		},
		write: func(fn func(*state) error) error {
			s.txMu.Lock()
			defer s.txMu.Unlock()
			s.mu.Lock()
			defer s.mu.Unlock()
			return fn(s.state)
		},
		now: s.now,
	}
}

type view struct {
	read  func(fn func(*state) error) error
	write func(fn func(*state) error) error
	now   func() time.Time
}

type queries struct {
	view view
}

func (q *queries) Users() repository.UserRepository { return &userRepository{q.view} }
func (q *queries) RBAC() repository.RBACRepository { return &rbacRepository{q.view} }
func (q *queries) Appointments() repository.AppointmentRepository { return &appointmentRepository{q.view} }
func (q *queries) Outbox() repository.OutboxRepository { return &outboxRepository{q.view} }

type state struct {
	seq             int64
	users           map[int64]model.User
	roles           map[int64]model.Role
	permissions     map[int64]model.Permission
	rolePermissions map[int64]map[int64]struct{}
	userRoles       map[int64]map[int64]struct{}
	appointments    map[int64]model.Appointment
	outbox          []model.OutboxEvent
}

func newState() *state {
	return &state{
		users:           make(map[int64]model.User),
		roles:           make(map[int64]model.Role),
		permissions:     make(map[int64]model.Permission),
		rolePermissions: make(map[int64]map[int64]struct{}),
		userRoles:       make(map[int64]map[int64]struct{}),
		appointments:    make(map[int64]model.Appointment),
	}
}

func (st *state) nextID() int64 {
	st.seq++
	return st.seq
}

// clone copies every table. Pointer fields inside rows are never mutated in
// place, so sharing them between copies is safe.
func (st *state) clone() *state {
	c := newState()
	c.seq = st.seq
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.roles {
		c.roles[k] = v
	}
	for k, v := range st.permissions {
		c.permissions[k] = v
	}
	for k, set := range st.rolePermissions {
		c.rolePermissions[k] = copySet(set)
	}
	for k, set := range st.userRoles {
		c.userRoles[k] = copySet(set)
	}
	for k, v := range st.appointments {
		c.appointments[k] = v
	}
	c.outbox = append([]model.OutboxEvent(nil), st.outbox...)
	return c
}

func copySet(in map[int64]struct{}) map[int64]struct{} {
	out := make(map[int64]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

func (st *state) roleByName(name model.RoleName) (model.Role, bool) {
	for _, r := range st.roles {
		if r.Name == name {
			return r, true
		}
	}
	return model.Role{}, false
}

// SoftDeleteAppointment marks an appointment deleted. Nothing in the API
// deletes appointments; fixtures use this to stage archived rows.
func (s *Store) SoftDeleteAppointment(id int64) error {
	return s.direct().write(func(st *state) error {
		a, ok := st.appointments[id]
		if !ok {
			return repository.ErrNotFound
		}
		now := s.now()
		a.DeletedAt = &now
		st.appointments[id] = a
		return nil
	})
}

// DeactivateUser clears the active flag of a user.
func (s *Store) DeactivateUser(id int64) error {
	return s.direct().write(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		u.IsActive = false
		u.UpdatedAt = s.now()
		st.users[id] = u
		return nil
	})
}

// OutboxEvents returns a copy of every outbox row in insertion order.
func (s *Store) OutboxEvents() []model.OutboxEvent {
	var out []model.OutboxEvent
	_ = s.direct().read(func(st *state) error {
		out = append(out, st.outbox...)
		return nil
	})
	return out
}
