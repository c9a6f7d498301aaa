package server

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/authgw/internal/audit"
	"github.com/vyrodovalexey/authgw/internal/auth"
	"github.com/vyrodovalexey/authgw/internal/observability"
)

// recovery returns middleware that converts panics into the server error
// envelope. The panic reaches the logs and the audit trail, never the
// response body.
func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					observability.Any("panic", rec),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
					observability.String("stack", string(debug.Stack())),
				)

				entry := audit.NewEntry(audit.SeverityError, audit.CategoryException, audit.ModuleCommon, "server", "recover").
					WithMessage("request handler panicked")
				s.audit.Record(c.Request.Context(), entry, fmt.Errorf("panic: %v", rec), c.Request)

				if !c.Writer.Written() {
					auth.WriteEnvelope(c.Writer, http.StatusInternalServerError, auth.NewErrorEnvelope(auth.ErrInternal))
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
