package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/user"
)

type Handler struct {
	service *user.Service
}

func NewHandler(service *user.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter, require handler.PermissionGuard) {
	users := r.Group("/users")
	{
		users.GET("", require(model.PermManageUsers), h.ListUsers)
		users.POST("", require(model.PermCreateUser), h.CreateUser)
	}
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req model.NewPatientRequest
	if err := c.ShouldBind(&req); err != nil {
		handler.RespondBindError(c)
		return
	}

	id, err := h.service.CreateUserByStaff(c.Request.Context(), handler.ActorFrom(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{"id": id}))
}

func (h *Handler) ListUsers(c *gin.Context) {
	dir, err := h.service.ListUsersFor(c.Request.Context(), handler.ActorFrom(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(dir))
}
