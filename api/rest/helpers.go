// Package rest is the HTTP surface of the service. Handlers translate JSON to
// ledger calls and back; every failure goes through apperr.Respond.
package rest

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/apperr"
)

// pathID parses a positive int64 path parameter.
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidArgument("invalid %s", name)
	}
	return id, nil
}

// queryInt parses an optional integer query parameter, 0 when absent.
func queryInt(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, apperr.InvalidArgument("invalid %s", name)
	}
	return v, nil
}

// bindJSON decodes the body into req, mapping binding failures to
// INVALID_ARGUMENT.
func bindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperr.InvalidArgument("invalid request body: %v", err)
	}
	return nil
}

// acceptBody is the body of every respond endpoint.
type acceptBody struct {
	Accept *bool `json:"accept" binding:"required"`
}
