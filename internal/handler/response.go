package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError writes err with the status of its AppError code. Internal
// failures never expose the wrapped cause.
func RespondError(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	if appErr.Code == apperrors.ErrInternal {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(appErr.StatusCode(), NewErrorResponse(appErr.Message))
}

// RespondBindError reports a request body that could not be decoded.
func RespondBindError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("Invalid request body"))
}
