package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type userRepository struct {
	base
}

const userSelect = `
	SELECT u.id, u.user_name, u.email, u.password_hash, u.contact_no, u.is_active,
		u.failed_logins, u.locked_until, u.last_login, u.created_by_staff,
		u.created_at, u.updated_at, COALESCE(d.name, '') AS name
	FROM users u
	LEFT JOIN user_details d ON d.user_id = u.id`

func (r *userRepository) getOne(ctx context.Context, query string, args ...interface{}) (*model.User, error) {
	var user model.User
	if err := r.get(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetActive(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, userSelect+` WHERE u.id = ? AND u.is_active = TRUE`, id)
}

func (r *userRepository) GetByUserName(ctx context.Context, userName string) (*model.User, error) {
	return r.getOne(ctx, userSelect+` WHERE u.user_name = ?`, userName)
}

func (r *userRepository) Lock(ctx context.Context, id int64) error {
	var locked int64
	if err := r.get(ctx, &locked, `SELECT id FROM users WHERE id = ? FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %d: %w", id, repository.ErrNotFound)
		}
		return fmt.Errorf("failed to lock user: %w", err)
	}
	return nil
}

func (r *userRepository) Create(ctx context.Context, user *model.User) (int64, error) {
	query := `
		INSERT INTO users (
			user_name, email, password_hash, contact_no, is_active,
			created_by_staff, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	now := r.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	id, err := r.insert(ctx, query,
		user.UserName,
		user.Email,
		user.PasswordHash,
		user.ContactNo,
		user.IsActive,
		user.CreatedByStaff,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id

	if _, err := r.exec(ctx, `INSERT INTO user_details (user_id, name) VALUES (?, ?)`, id, user.Name); err != nil {
		return 0, fmt.Errorf("failed to create user details: %w", err)
	}
	return id, nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.get(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *userRepository) ListActive(ctx context.Context) ([]*model.UserSummary, error) {
	users := []*model.UserSummary{}
	query := `
		SELECT u.id, u.user_name, u.email, COALESCE(d.name, '') AS name
		FROM users u
		LEFT JOIN user_details d ON d.user_id = u.id
		WHERE u.is_active = TRUE
		ORDER BY u.id`
	if err := r.selectAll(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var edges []struct {
		UserID int64          `db:"user_id"`
		Name   model.RoleName `db:"name"`
	}
	query = `
		SELECT ur.user_id, r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		ORDER BY r.name`
	if err := r.selectAll(ctx, &edges, query); err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}

	byID := make(map[int64]*model.UserSummary, len(users))
	for _, u := range users {
		u.Roles = []model.RoleName{}
		byID[u.ID] = u
	}
	for _, e := range edges {
		if u, ok := byID[e.UserID]; ok {
			u.Roles = append(u.Roles, e.Name)
		}
	}
	return users, nil
}

func (r *userRepository) RecordLoginFailure(ctx context.Context, id int64, failedLogins int, lockedUntil *time.Time) error {
	query := `UPDATE users SET failed_logins = ?, locked_until = ?, updated_at = ? WHERE id = ?`
	if _, err := r.exec(ctx, query, failedLogins, lockedUntil, r.now(), id); err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	return nil
}

func (r *userRepository) RecordLoginSuccess(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE users SET failed_logins = 0, locked_until = NULL, last_login = ?, updated_at = ? WHERE id = ?`
	if _, err := r.exec(ctx, query, at, r.now(), id); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}
