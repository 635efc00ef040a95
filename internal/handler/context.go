package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/model"
)

const ContextActor = "actor"

func SetActor(c *gin.Context, actor *model.Actor) {
	c.Set(ContextActor, actor)
}

// ActorFrom returns the actor the auth middleware attached, or nil.
func ActorFrom(c *gin.Context) *model.Actor {
	if v, ok := c.Get(ContextActor); ok {
		if actor, ok := v.(*model.Actor); ok {
			return actor
		}
	}
	return nil
}

// PermissionGuard builds middleware admitting actors holding any of perms.
type PermissionGuard func(perms ...model.PermissionName) gin.HandlerFunc
