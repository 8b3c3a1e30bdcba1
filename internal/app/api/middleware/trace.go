package middleware

import (
	"context"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/gachapon/pkg/logctx"
	"github.com/fatflowers/gachapon/pkg/tool"
)

const RequestIDHeader = "X-Request-ID"

// Kiosks and the WebView forward their own ids; anything else is replaced.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// TraceMiddleware stores a trace id in gin.Context and the request context.
// A well-formed X-Request-ID is reused, otherwise a UUIDv7 is generated.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(RequestIDHeader)
		if !validRequestID.MatchString(traceID) {
			traceID = tool.GenerateUUIDV7()
		}

		c.Set(logctx.KeyTraceID, traceID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logctx.KeyTraceID, traceID))
		c.Next()
	}
}
