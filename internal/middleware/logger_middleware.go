package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	apperrors "github.com/weiwangfds/datashare/internal/errors"
	"github.com/weiwangfds/datashare/internal/logger"
	"github.com/weiwangfds/datashare/internal/response"
)

// Recovery turns handler panics into a logged 500
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(logrus.Fields{
					"trace_id": c.GetString("trace_id"),
					"method":   c.Request.Method,
					"path":     c.Request.URL.Path,
					"panic":    r,
					"stack":    string(debug.Stack()),
				}).Error("panic recovered")
				response.Abort(c, apperrors.ErrInternalServer)
			}
		}()
		c.Next()
	}
}
