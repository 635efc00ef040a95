package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/repository"
)

type Options struct {
	// RoleCacheTTL bounds how long a role name -> id lookup is reused.
	RoleCacheTTL    time.Duration
	CleanupInterval time.Duration
	// Now is the clock used for timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Store is the SQL implementation of repository.Store for postgres and mysql.
// Queries are written with ? placeholders and rebound for the driver.
type Store struct {
	db    *sqlx.DB
	roles *cache.Cache
	now   func() time.Time
}

var _ repository.Store = (*Store)(nil)

func New(db *sqlx.DB, opts Options) *Store {
	if opts.RoleCacheTTL == 0 {
		opts.RoleCacheTTL = 10 * time.Minute
	}
	if opts.CleanupInterval == 0 {
		opts.CleanupInterval = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		db:    db,
		roles: cache.New(opts.RoleCacheTTL, opts.CleanupInterval),
		now:   opts.Now,
	}
}

// DB returns the database instance
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Users() repository.UserRepository {
	return &userRepository{base{q: s.db, now: s.now}}
}

func (s *Store) RBAC() repository.RBACRepository {
	return &rbacRepository{base: base{q: s.db, now: s.now}, roles: s.roles}
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{base{q: s.db, now: s.now}}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{base{q: s.db, now: s.now}}
}

// WithTx executes fn within a read-committed transaction. Row locks taken
// through the repositories hold until commit or rollback.
func (s *Store) WithTx(ctx context.Context, fn func(q repository.Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txQueries{tx: tx, roles: s.roles, now: s.now}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txQueries struct {
	tx    *sqlx.Tx
	roles *cache.Cache
	now   func() time.Time
}

func (t *txQueries) Users() repository.UserRepository {
	return &userRepository{base{q: t.tx, now: t.now}}
}

func (t *txQueries) RBAC() repository.RBACRepository {
	return &rbacRepository{base: base{q: t.tx, now: t.now}, roles: t.roles}
}

func (t *txQueries) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{base{q: t.tx, now: t.now}}
}

func (t *txQueries) Outbox() repository.OutboxRepository {
	return &outboxRepository{base{q: t.tx, now: t.now}}
}

// base is shared by every repository; q is either the pool or a transaction.
type base struct {
	q   sqlx.ExtContext
	now func() time.Time
}

func (b base) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, b.q, dest, b.q.Rebind(query), args...)
}

func (b base) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, b.q, dest, b.q.Rebind(query), args...)
}

func (b base) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return b.q.ExecContext(ctx, b.q.Rebind(query), args...)
}

// insert runs an INSERT and returns the generated id. Postgres has no
// LastInsertId, so the statement gets a RETURNING clause there.
func (b base) insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	if b.q.DriverName() == DriverPostgres {
		var id int64
		if err := b.q.QueryRowxContext(ctx, b.q.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := b.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
