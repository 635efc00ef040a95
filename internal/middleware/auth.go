package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type TokenValidator interface {
	ValidateToken(token string) (int64, error)
}

type ActorBuilder interface {
	BuildActor(ctx context.Context, userID int64) (*model.Actor, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
	actors ActorBuilder
}

func NewAuthMiddleware(tokens TokenValidator, actors ActorBuilder) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		actors: actors,
	}
}

// Authenticate verifies the bearer token and attaches the caller's actor,
// built from live role assignments, to the request.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			handler.RespondError(c, unauthorized("Missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			handler.RespondError(c, unauthorized("Invalid authorization format"))
			return
		}

		userID, err := m.tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			handler.RespondError(c, unauthorized("Invalid token"))
			return
		}

		actor, err := m.actors.BuildActor(c.Request.Context(), userID)
		if err != nil {
			// A token for a user that no longer resolves is not a 404.
			if apperrors.Is(err, apperrors.ErrNotFound) {
				handler.RespondError(c, unauthorized("Account is not active"))
				return
			}
			handler.RespondError(c, err)
			return
		}

		handler.SetActor(c, actor)
		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// RequirePermission admits actors holding at least one of perms.
func (m *AuthMiddleware) RequirePermission(perms ...model.PermissionName) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := handler.ActorFrom(c)
		if actor == nil {
			handler.RespondError(c, unauthorized("Authentication required"))
			return
		}
		if !actor.HasAnyPermission(perms...) {
			handler.RespondError(c, apperrors.Forbidden("Permission denied"))
			return
		}
		c.Next()
	}
}

func unauthorized(message string) *apperrors.AppError {
	return &apperrors.AppError{Code: apperrors.ErrUnauthorized, Message: message}
}
