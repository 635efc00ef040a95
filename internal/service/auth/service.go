package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

const tokenType = "Bearer"

// Options control the brute-force lockout.
type Options struct {
	MaxFailedLogins int
	LockoutDuration time.Duration
}

type Service struct {
	store  repository.Store
	hasher security.PasswordHasher
	jwtSvc auth.JWTService
	opts   Options
	logger *logger.Logger
	now    func() time.Time
}

func NewService(store repository.Store, hasher security.PasswordHasher, jwtSvc auth.JWTService, opts Options, log *logger.Logger) *Service {
	if opts.MaxFailedLogins <= 0 {
		opts.MaxFailedLogins = 5
	}
	if opts.LockoutDuration <= 0 {
		opts.LockoutDuration = 5 * time.Minute
	}
	return &Service{
		store:  store,
		hasher: hasher,
		jwtSvc: jwtSvc,
		opts:   opts,
		logger: log,
		now:    time.Now,
	}
}

func invalidCredentials() *apperrors.AppError {
	return &apperrors.AppError{Code: apperrors.ErrUnauthorized, Message: "Invalid username or password", Err: model.ErrInvalidCredentials}
}

func accountLocked() *apperrors.AppError {
	return &apperrors.AppError{Code: apperrors.ErrUnauthorized, Message: "Account is locked, please try again later", Err: model.ErrAccountLocked}
}

// Login checks the password and issues an access token. Failed attempts are
// counted on the user row and lock the account once the limit is reached;
// the counter is committed even though the login itself fails.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	if req == nil || strings.TrimSpace(req.UserName) == "" || req.Password == "" {
		return nil, apperrors.Validation("Username and password are required")
	}
	userName := strings.TrimSpace(req.UserName)

	var (
		userID  int64
		outcome *apperrors.AppError
	)
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		u, err := q.Users().GetByUserName(ctx, userName)
		if errors.Is(err, repository.ErrNotFound) {
			outcome = invalidCredentials()
			return nil
		}
		if err != nil {
			return err
		}
		if err := q.Users().Lock(ctx, u.ID); err != nil {
			return err
		}

		now := s.now()
		if !u.IsActive {
			outcome = invalidCredentials()
			return nil
		}
		if u.IsLocked(now) {
			outcome = accountLocked()
			return nil
		}

		if err := s.hasher.Compare(u.PasswordHash, req.Password); err != nil {
			failed := u.FailedLogins + 1
			var lockedUntil *time.Time
			outcome = invalidCredentials()
			if failed >= s.opts.MaxFailedLogins {
				until := now.Add(s.opts.LockoutDuration)
				lockedUntil = &until
				failed = 0
				outcome = accountLocked()
				s.logger.Warn("account locked after failed logins", "user_id", u.ID, "until", until)
			}
			return q.Users().RecordLoginFailure(ctx, u.ID, failed, lockedUntil)
		}

		userID = u.ID
		return q.Users().RecordLoginSuccess(ctx, u.ID, now)
	})
	if err != nil {
		s.logger.Error(err, "login failed", "user_name", userName)
		return nil, apperrors.Internal(err)
	}
	if outcome != nil {
		s.logger.Debug("login rejected", "user_name", userName, "reason", outcome.Message)
		return nil, outcome
	}

	token, expiresAt, err := s.jwtSvc.GenerateAccessToken(userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.logger.Info("user logged in", "user_id", userID)
	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   tokenType,
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
	}, nil
}

// ValidateToken returns the user id carried by an access token.
func (s *Service) ValidateToken(token string) (int64, error) {
	userID, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return 0, apperrors.Unauthorized(err)
	}
	return userID, nil
}
