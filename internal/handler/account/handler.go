package account

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/service/identity"
)

// Handler serves the caller's own account: its capability snapshot and the
// dashboard it lands on.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/me", h.Me)
	r.GET("/dashboard", h.Dashboard)
}

func (h *Handler) Me(c *gin.Context) {
	actor := handler.ActorFrom(c)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(actor.Response()))
}

func (h *Handler) Dashboard(c *gin.Context) {
	landing, err := identity.LandingFor(handler.ActorFrom(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"dashboard": landing}))
}
