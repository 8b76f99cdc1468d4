package apperr

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// Body is the JSON error envelope.
type Body struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Respond aborts the request with the structured form of err. Internal errors
// are attached to the gin context for the logging middleware and replaced by a
// generic message.
func Respond(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) || e.Code == CodeInternal {
		_ = c.Error(err)
		e = &Error{Code: CodeInternal, Message: "internal error"}
	}
	c.AbortWithStatusJSON(HTTPStatus(e), gin.H{"error": Body{Code: e.Code, Message: e.Message}})
}
