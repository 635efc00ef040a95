package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type rbacRepository struct {
	base
	roles *cache.Cache
}

func (r *rbacRepository) GetRoleByName(ctx context.Context, name model.RoleName) (*model.Role, error) {
	key := string(name)
	if cached, ok := r.roles.Get(key); ok {
		role := cached.(model.Role)
		return &role, nil
	}

	var role model.Role
	query := `SELECT id, name, COALESCE(description, '') AS description FROM roles WHERE name = ?`
	if err := r.get(ctx, &role, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("role %q: %w", name, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	r.roles.SetDefault(key, role)
	return &role, nil
}

func (r *rbacRepository) ListRoles(ctx context.Context) ([]*model.Role, error) {
	roles := []*model.Role{}
	query := `SELECT id, name, COALESCE(description, '') AS description FROM roles ORDER BY name`
	if err := r.selectAll(ctx, &roles, query); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

func (r *rbacRepository) ListUserRoleNames(ctx context.Context, userID int64) ([]string, error) {
	names := []string{}
	query := `
		SELECT r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ?`
	if err := r.selectAll(ctx, &names, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}
	return names, nil
}

func (r *rbacRepository) ListUserPermissionNames(ctx context.Context, userID int64) ([]string, error) {
	names := []string{}
	query := `
		SELECT DISTINCT p.name
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = ?`
	if err := r.selectAll(ctx, &names, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list user permissions: %w", err)
	}
	return names, nil
}

func (r *rbacRepository) UserHasRole(ctx context.Context, userID int64, role model.RoleName) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ? AND r.name = ?`
	if err := r.get(ctx, &count, query, userID, role); err != nil {
		return false, fmt.Errorf("failed to check user role: %w", err)
	}
	return count > 0, nil
}

func (r *rbacRepository) HasUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM user_roles WHERE user_id = ? AND role_id = ?`
	if err := r.get(ctx, &count, query, userID, roleID); err != nil {
		return false, fmt.Errorf("failed to check role assignment: %w", err)
	}
	return count > 0, nil
}

func (r *rbacRepository) CountUserRoles(ctx context.Context, userID int64) (int, error) {
	var count int
	if err := r.get(ctx, &count, `SELECT COUNT(*) FROM user_roles WHERE user_id = ?`, userID); err != nil {
		return 0, fmt.Errorf("failed to count user roles: %w", err)
	}
	return count, nil
}

func (r *rbacRepository) AssignRoleToUser(ctx context.Context, userID, roleID int64) error {
	if _, err := r.exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`, userID, roleID); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

func (r *rbacRepository) RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error {
	result, err := r.exec(ctx, `DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("role assignment: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *rbacRepository) EnsureRole(ctx context.Context, name model.RoleName, description string) (int64, error) {
	var id int64
	err := r.get(ctx, &id, `SELECT id FROM roles WHERE name = ?`, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to get role: %w", err)
	}

	id, err = r.insert(ctx, `INSERT INTO roles (name, description) VALUES (?, ?)`, name, description)
	if err != nil {
		return 0, fmt.Errorf("failed to create role: %w", err)
	}
	return id, nil
}

func (r *rbacRepository) EnsurePermission(ctx context.Context, name model.PermissionName, description string) (int64, error) {
	var id int64
	err := r.get(ctx, &id, `SELECT id FROM permissions WHERE name = ?`, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to get permission: %w", err)
	}

	id, err = r.insert(ctx, `INSERT INTO permissions (name, description) VALUES (?, ?)`, name, description)
	if err != nil {
		return 0, fmt.Errorf("failed to create permission: %w", err)
	}
	return id, nil
}

func (r *rbacRepository) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	var count int
	query := `SELECT COUNT(*) FROM role_permissions WHERE role_id = ? AND permission_id = ?`
	if err := r.get(ctx, &count, query, roleID, permissionID); err != nil {
		return fmt.Errorf("failed to check role permission: %w", err)
	}
	if count > 0 {
		return nil
	}

	query = `INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?)`
	if _, err := r.exec(ctx, query, roleID, permissionID); err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	return nil
}
