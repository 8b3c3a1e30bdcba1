package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/internal/app/service/session"
	"github.com/fatflowers/gachapon/pkg/logctx"
	"github.com/fatflowers/gachapon/pkg/response"
	"github.com/fatflowers/gachapon/pkg/types"
)

const (
	KeyIdentity     = "identity"
	KeyResponseCode = "response_code"

	MachineKeyHeader = "X-Machine-Key"
)

// Abort writes an error envelope and stops the chain. The status stays 200.
func Abort(c *gin.Context, code response.APIResponseCode, data any) {
	c.Set(KeyResponseCode, code)
	c.AbortWithStatusJSON(http.StatusOK, response.ErrorT(code, data))
}

// SessionToken reads the token from the "token" query parameter, falling back
// to an Authorization bearer token.
func SessionToken(c *gin.Context) string {
	if t := strings.TrimSpace(c.Query("token")); t != "" {
		return t
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Session authenticates the caller and stores its identity in gin.Context
// and user_id in the request context.
func Session(v session.Validator, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c)
		if token == "" {
			Abort(c, response.APIResponseCodeUnauthorized, session.Code(session.ErrInvalidToken))
			return
		}
		id, err := v.Validate(c.Request.Context(), token)
		if err != nil {
			logctx.FromGin(c, base).Infow("session_rejected", "reason", session.Code(err))
			Abort(c, response.APIResponseCodeUnauthorized, session.Code(err))
			return
		}

		c.Set(KeyIdentity, id)
		c.Set(logctx.KeyUserID, id.UserID)
		reqLogger := logctx.FromGin(c, base).With("user_id", id.UserID)
		c.Set(logctx.KeyLogger, reqLogger)
		ctx := context.WithValue(c.Request.Context(), logctx.KeyUserID, id.UserID)
		c.Request = c.Request.WithContext(logctx.WithLogger(ctx, reqLogger))
		c.Next()
	}
}

// Identity returns the caller attached by Session, or nil.
func Identity(c *gin.Context) *types.Identity {
	v, ok := c.Get(KeyIdentity)
	if !ok {
		return nil
	}
	id, _ := v.(*types.Identity)
	return id
}

// RequireRole rejects callers without role. It must run after Session.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Identity(c).HasRole(role) {
			Abort(c, response.APIResponseCodeForbidden, "role "+role+" required")
			return
		}
		c.Next()
	}
}

// MachineKey admits kiosk calls carrying the shared machine key. An empty key
// admits every call.
func MachineKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader(MachineKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			Abort(c, response.APIResponseCodeUnauthorized, "invalid machine key")
			return
		}
		c.Next()
	}
}
