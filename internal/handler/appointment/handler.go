package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter, require handler.PermissionGuard) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("",
			require(model.PermViewAppointments, model.PermManageAppointments),
			h.ListAppointments)
		appointments.POST("",
			require(model.PermCreateAppointments, model.PermManageAppointments),
			h.CreateAppointment)
		appointments.PATCH("/:id/status",
			require(model.PermUpdateAppointments, model.PermManageAppointments),
			h.UpdateStatus)
	}
}

func (h *Handler) ListAppointments(c *gin.Context) {
	views, err := h.service.ListAppointmentsFor(c.Request.Context(), handler.ActorFrom(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(views))
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBind(&req); err != nil {
		handler.RespondBindError(c)
		return
	}

	id, err := h.service.CreateAppointmentFor(c.Request.Context(), handler.ActorFrom(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{"id": id}))
}

type statusBody struct {
	Status string  `json:"status" form:"status"`
	Notes  *string `json:"notes" form:"notes"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var body statusBody
	if err := c.ShouldBind(&body); err != nil {
		handler.RespondBindError(c)
		return
	}

	req := &model.UpdateAppointmentStatusRequest{
		AppointmentID: c.Param("id"),
		Status:        body.Status,
		Notes:         body.Notes,
	}
	id, err := h.service.UpdateAppointmentStatusFor(c.Request.Context(), handler.ActorFrom(c), req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id, "status": req.Status}))
}
