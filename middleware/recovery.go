package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/apperr"
	"go.uber.org/zap"
)

// Recovery catches panics, logs them and answers with the INTERNAL error body.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					zap.Any("error", r),
					zap.String("trace_id", GetTraceID(c)),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				apperr.Respond(c, apperr.Internal(fmt.Errorf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}
