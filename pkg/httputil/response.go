package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/medflow/scheduler-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithCreated sends a 201 response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

var statusByCode = map[apperrors.ErrorCode]int{
	apperrors.ErrNotFound:           http.StatusNotFound,
	apperrors.ErrBadRequest:         http.StatusBadRequest,
	apperrors.ErrUnauthorized:       http.StatusUnauthorized,
	apperrors.ErrForbidden:          http.StatusForbidden,
	apperrors.ErrValidation:         http.StatusUnprocessableEntity,
	apperrors.ErrSchedulingConflict: http.StatusConflict,
	apperrors.ErrInvalidTransition:  http.StatusConflict,
	apperrors.ErrGeofence:           http.StatusForbidden,
	apperrors.ErrDuplicateCheckIn:   http.StatusConflict,
	apperrors.ErrDependency:         http.StatusBadGateway,
}

// RespondWithError sends an error response, mapping AppError codes to
// HTTP statuses.
func RespondWithError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	if appErr, ok := err.(*apperrors.AppError); ok {
		if mapped, ok := statusByCode[appErr.Code]; ok {
			statusCode = mapped
		}
		message = appErr.Message
	}

	c.JSON(statusCode, Response{
		Success: false,
		Error: &Error{
			Code:    statusCode,
			Message: message,
		},
	})
}
