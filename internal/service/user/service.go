package user

import (
	"context"
	"errors"
	"strings"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

const (
	opCreateUser = "create_user"
	opListUsers  = "list_users"
)

type Service struct {
	store           repository.Store
	hasher          security.PasswordHasher
	validator       validator.Validator
	defaultPassword string
	logger          *logger.Logger
	metrics         *metrics.Metrics
}

// NewService builds the user service. Accounts registered by staff get
// defaultPassword until the patient changes it.
func NewService(store repository.Store, hasher security.PasswordHasher, defaultPassword string, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:           store,
		hasher:          hasher,
		validator:       validator.New(),
		defaultPassword: defaultPassword,
		logger:          log,
		metrics:         m,
	}
}

// CreateUserByStaff registers a patient in its own transaction.
func (s *Service) CreateUserByStaff(ctx context.Context, actor *model.Actor, req *model.NewPatientRequest) (int64, error) {
	var id int64
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		var err error
		id, err = s.CreatePatient(ctx, q, actor, req)
		return err
	})
	if err != nil {
		return 0, apperrors.As(err)
	}
	return id, nil
}

// CreatePatient registers a patient inside the caller's transaction: the
// user row, its details, the patient role and a user.created event.
func (s *Service) CreatePatient(ctx context.Context, q repository.Queries, actor *model.Actor, req *model.NewPatientRequest) (int64, error) {
	if !actor.HasPermission(model.PermCreateUser) {
		s.metrics.RecordDecision(opCreateUser, metrics.OutcomeDenied)
		return 0, apperrors.Forbidden("User creation is not permitted")
	}

	in := model.NewPatientRequest{
		Name:      strings.TrimSpace(req.Name),
		UserName:  strings.TrimSpace(req.UserName),
		Email:     strings.TrimSpace(req.Email),
		ContactNo: strings.TrimSpace(req.ContactNo),
	}
	if err := s.validator.Validate(&in); err != nil {
		s.metrics.RecordDecision(opCreateUser, metrics.OutcomeRejected)
		var verrs validator.Errors
		if errors.As(err, &verrs) && verrs.Has("email", "email") {
			return 0, apperrors.ValidationWrap("Invalid email address", err)
		}
		return 0, apperrors.ValidationWrap("Missing required user data", err)
	}

	hash, err := s.hasher.Hash(s.defaultPassword)
	if err != nil {
		return 0, apperrors.InternalMessage("User creation failed", err)
	}

	role, err := q.RBAC().GetRoleByName(ctx, model.RolePatient)
	if err != nil {
		s.logger.Error(err, "patient role missing from catalog")
		return 0, apperrors.InternalMessage("Registration configuration error", err)
	}

	staffID := actor.ID
	user := &model.User{
		UserName:       in.UserName,
		Email:          in.Email,
		Name:           in.Name,
		PasswordHash:   hash,
		IsActive:       true,
		CreatedByStaff: &staffID,
	}
	if in.ContactNo != "" {
		user.ContactNo = &in.ContactNo
	}

	id, err := q.Users().Create(ctx, user)
	if err != nil {
		s.logger.Debug("user insert rejected", "user_name", in.UserName, "error", err.Error())
		return 0, apperrors.InternalMessage("User creation failed", err)
	}
	if err := q.RBAC().AssignRoleToUser(ctx, id, role.ID); err != nil {
		return 0, apperrors.InternalMessage("User creation failed", err)
	}

	payload := model.UserCreatedPayload{UserID: id, Role: model.RolePatient, ActorID: actor.ID}
	if err := event.Emit(ctx, q.Outbox(), model.EventUserCreated, id, payload); err != nil {
		return 0, apperrors.InternalMessage("User creation failed", err)
	}

	s.metrics.RecordDecision(opCreateUser, metrics.OutcomeAllowed)
	s.logger.Info("patient registered", "user_id", id, "created_by", actor.ID)
	return id, nil
}

// ListUsersFor returns the user directory for user managers and an empty
// directory for everyone else.
func (s *Service) ListUsersFor(ctx context.Context, actor *model.Actor) (*model.UserDirectory, error) {
	dir := &model.UserDirectory{Users: []*model.UserSummary{}, Roles: []*model.Role{}}
	if !actor.HasPermission(model.PermManageUsers) {
		s.metrics.RecordDecision(opListUsers, metrics.OutcomeDenied)
		return dir, nil
	}

	users, err := s.store.Users().ListActive(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	roles, err := s.store.RBAC().ListRoles(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	dir.Users = users
	dir.Roles = roles
	s.metrics.RecordDecision(opListUsers, metrics.OutcomeAllowed)
	return dir, nil
}
