package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/fatflowers/gachapon/internal/app/api/middleware"
	"github.com/fatflowers/gachapon/pkg/logctx"
	"github.com/fatflowers/gachapon/pkg/response"
)

// fail writes the error envelope for err. Unclassified errors are logged.
func fail(c *gin.Context, log *zap.SugaredLogger, err error) {
	code := response.CodeFromError(err)
	if code == response.APIResponseCodeError {
		logctx.FromGin(c, log).Errorw("request_failed", "path", c.FullPath(), "error", err.Error())
	}
	c.Set(mw.KeyResponseCode, code)
	c.JSON(http.StatusOK, response.FromError(err))
}

func badRequest(c *gin.Context, msg string) {
	c.Set(mw.KeyResponseCode, response.APIResponseCodeBadRequest)
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, msg))
}

// userID is the authenticated caller. Routes using it sit behind Session.
func userID(c *gin.Context) string {
	if id := mw.Identity(c); id != nil {
		return id.UserID
	}
	return ""
}
