package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "vlogclip/pkg/errors"
)

// ErrorBody is what every failed request answers with.
type ErrorBody struct {
	Error  string `json:"error"`            // Human-readable message
	Code   int    `json:"code"`             // AppError code
	Detail string `json:"detail,omitempty"` // Additional error details
}

// Success returns a 200 response with data
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Accepted returns a 202 response for work that continues in the background
func Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, data)
}

// FromError converts an error to a status and body.
// AppErrors keep their code; anything else is CodeUnknown.
func FromError(err error) (int, ErrorBody) {
	if err == nil {
		return http.StatusOK, ErrorBody{}
	}

	body := ErrorBody{
		Code:  apperrors.GetCode(err),
		Error: apperrors.GetMessage(err),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Detail = appErr.Detail
	}
	return apperrors.HTTPStatus(err), body
}

// ErrorResponse sends an error response from an error
func ErrorResponse(c *gin.Context, err error) {
	status, body := FromError(err)
	c.AbortWithStatusJSON(status, body)
}
