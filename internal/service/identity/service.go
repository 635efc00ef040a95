package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

type Service struct {
	store  repository.Store
	logger *logger.Logger
}

func NewService(store repository.Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

// BuildActor loads the user's roles and the permissions reachable through
// them in one read transaction. Missing, inactive and role-less users do not
// resolve.
func (s *Service) BuildActor(ctx context.Context, userID int64) (*model.Actor, error) {
	var actor *model.Actor

	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		if _, err := q.Users().GetActive(ctx, userID); err != nil {
			return err
		}

		roles, err := q.RBAC().ListUserRoleNames(ctx, userID)
		if err != nil {
			return err
		}
		if len(roles) == 0 {
			return fmt.Errorf("user %d has no roles: %w", userID, repository.ErrNotFound)
		}

		perms, err := q.RBAC().ListUserPermissionNames(ctx, userID)
		if err != nil {
			return err
		}

		actor = model.NewActor(userID, roles, perms)
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("User not found", err)
		}
		s.logger.Error(err, "failed to build actor", "user_id", userID)
		return nil, apperrors.Internal(err)
	}

	return actor, nil
}

// Dashboard keys in priority order.
var landingOrder = []model.RoleName{
	model.RoleAdmin,
	model.RoleDoctor,
	model.RoleClinicReceptionist,
	model.RolePatient,
}

// LandingFor picks the dashboard an actor lands on after login.
func LandingFor(actor *model.Actor) (model.RoleName, error) {
	for _, role := range landingOrder {
		if actor.HasRole(role) {
			return role, nil
		}
	}
	return "", apperrors.Forbidden("No dashboard available for this account")
}
