package rbac

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const (
	opAssignRole = "assign_role"
	opRemoveRole = "remove_role"
)

type Service struct {
	store   repository.Store
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(store repository.Store, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		logger:  log,
		metrics: m,
	}
}

type roleChange struct {
	userID int64
	role   model.RoleName
}

func (s *Service) parse(actor *model.Actor, req *model.RoleChangeRequest) (roleChange, error) {
	if !actor.HasPermission(model.PermManageUsers) {
		return roleChange{}, apperrors.Forbidden("Not authorized to manage user roles")
	}
	if req == nil || strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Role) == "" {
		return roleChange{}, apperrors.Validation("Missing user or role")
	}
	// Role names are compared lower-cased everywhere.
	role := model.NormalizeRoleName(req.Role)

	userID, err := parseUserID(req.UserID)
	if err != nil {
		return roleChange{}, err
	}
	return roleChange{userID: userID, role: role}, nil
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationWrap("Invalid user ID", err)
	}
	return id, nil
}

// lockTarget takes the target user's row lock and resolves the role. Every
// later check in the transaction runs under that lock.
func lockTarget(ctx context.Context, q repository.Queries, change roleChange) (*model.Role, error) {
	if err := q.Users().Lock(ctx, change.userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Target user not found", err)
		}
		return nil, apperrors.Internal(err)
	}

	role, err := q.RBAC().GetRoleByName(ctx, change.role)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Role not found", err)
		}
		return nil, apperrors.Internal(err)
	}
	return role, nil
}

// AssignRoleTo attaches a role to a user and returns the user's id.
func (s *Service) AssignRoleTo(ctx context.Context, actor *model.Actor, req *model.RoleChangeRequest) (int64, error) {
	change, err := s.parse(actor, req)
	if err != nil {
		return 0, s.finish(opAssignRole, err)
	}

	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		role, err := lockTarget(ctx, q, change)
		if err != nil {
			return err
		}

		has, err := q.RBAC().HasUserRole(ctx, change.userID, role.ID)
		if err != nil {
			return apperrors.Internal(err)
		}
		if has {
			return apperrors.Conflict("User already has this role")
		}

		if err := q.RBAC().AssignRoleToUser(ctx, change.userID, role.ID); err != nil {
			return apperrors.Internal(err)
		}
		return event.Emit(ctx, q.Outbox(), model.EventUserRoleAssigned, change.userID, model.UserRoleChangedPayload{
			UserID:  change.userID,
			Role:    role.Name,
			ActorID: actor.ID,
		})
	})
	if err != nil {
		return 0, s.finish(opAssignRole, err)
	}

	s.logger.Info("role assigned", "user_id", change.userID, "role", string(change.role), "actor_id", actor.ID)
	return change.userID, s.finish(opAssignRole, nil)
}

// RemoveRoleOf detaches a role from a user and returns the user's id. A user
// always keeps at least one role, and admins cannot drop their own admin role.
func (s *Service) RemoveRoleOf(ctx context.Context, actor *model.Actor, req *model.RoleChangeRequest) (int64, error) {
	change, err := s.parse(actor, req)
	if err != nil {
		return 0, s.finish(opRemoveRole, err)
	}

	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		role, err := lockTarget(ctx, q, change)
		if err != nil {
			return err
		}

		if actor.ID == change.userID && role.Name == model.RoleAdmin {
			return apperrors.Conflict("Admin cannot remove their own admin role")
		}

		has, err := q.RBAC().HasUserRole(ctx, change.userID, role.ID)
		if err != nil {
			return apperrors.Internal(err)
		}
		if !has {
			return apperrors.Conflict("User does not have this role")
		}

		count, err := q.RBAC().CountUserRoles(ctx, change.userID)
		if err != nil {
			return apperrors.Internal(err)
		}
		if count <= 1 {
			return apperrors.Conflict("User must have at least one role")
		}

		if err := q.RBAC().RemoveRoleFromUser(ctx, change.userID, role.ID); err != nil {
			return apperrors.Internal(err)
		}
		return event.Emit(ctx, q.Outbox(), model.EventUserRoleRemoved, change.userID, model.UserRoleChangedPayload{
			UserID:  change.userID,
			Role:    role.Name,
			ActorID: actor.ID,
		})
	})
	if err != nil {
		return 0, s.finish(opRemoveRole, err)
	}

	s.logger.Info("role removed", "user_id", change.userID, "role", string(change.role), "actor_id", actor.ID)
	return change.userID, s.finish(opRemoveRole, nil)
}

func (s *Service) finish(op string, err error) error {
	if err == nil {
		s.metrics.RecordDecision(op, metrics.OutcomeAllowed)
		return nil
	}

	appErr := apperrors.As(err)
	switch appErr.Code {
	case apperrors.ErrForbidden:
		s.metrics.RecordDecision(op, metrics.OutcomeDenied)
		s.logger.Debug("role change denied", "operation", op)
	case apperrors.ErrInternal:
		s.metrics.RecordDecision(op, metrics.OutcomeFailed)
		s.logger.Error(err, "role change failed", "operation", op)
	default:
		s.metrics.RecordDecision(op, metrics.OutcomeRejected)
	}
	return appErr
}
