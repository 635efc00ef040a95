package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	rbacService "github.com/jwalitptl/clinic-api/internal/service/rbac"
)

type Handler struct {
	service *rbacService.Service
}

func NewHandler(service *rbacService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter, require handler.PermissionGuard) {
	users := r.Group("/users", require(model.PermManageUsers))
	{
		users.POST("/:id/roles", h.AssignRole)
		users.DELETE("/:id/roles/:role", h.RemoveRole)
	}
}

type assignRoleBody struct {
	Role string `json:"role" form:"role"`
}

func (h *Handler) AssignRole(c *gin.Context) {
	var body assignRoleBody
	if err := c.ShouldBind(&body); err != nil {
		handler.RespondBindError(c)
		return
	}

	req := &model.RoleChangeRequest{UserID: c.Param("id"), Role: body.Role}
	id, err := h.service.AssignRoleTo(c.Request.Context(), handler.ActorFrom(c), req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"user_id": id, "role": model.NormalizeRoleName(req.Role)}))
}

func (h *Handler) RemoveRole(c *gin.Context) {
	req := &model.RoleChangeRequest{UserID: c.Param("id"), Role: c.Param("role")}
	id, err := h.service.RemoveRoleOf(c.Request.Context(), handler.ActorFrom(c), req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"user_id": id, "role": model.NormalizeRoleName(req.Role)}))
}
