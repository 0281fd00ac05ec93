package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/pkg/apperror"
)

// ErrorResponse defines the JSON structure for error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Error sends a JSON error response.
// AppErrors are returned with their own status and message. Anything else is logged and
// reported as a generic 500 so internal detail never reaches the customer.
func Error(c *gin.Context, logger *zap.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Status, ErrorResponse{Error: appErr.Message, Code: appErr.Code})
		return
	}

	if logger != nil {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "INTERNAL"})
}

// BadRequest reports a binding or validation failure.
func BadRequest(c *gin.Context, message string, err error) {
	resp := ErrorResponse{Error: message, Code: "INVALID_REQUEST"}
	if err != nil {
		resp.Details = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}
