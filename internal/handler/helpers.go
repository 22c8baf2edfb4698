package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xxxsen/quill/internal/middleware"
	appErr "github.com/xxxsen/quill/internal/pkg/errcode"
	"github.com/xxxsen/quill/internal/pkg/errors"
	"github.com/xxxsen/quill/internal/pkg/logging"
	"github.com/xxxsen/quill/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func getUserEmail(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserEmailKey)
	email, _ := value.(string)
	return email
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// handleError translates a service error into the §7 status/code taxonomy.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logging.From(c.Request.Context()).Warn("request failed",
		zap.String("path", c.FullPath()), zap.Error(err))

	switch {
	case err == errors.ErrUnauthorized:
		response.Error(c, http.StatusUnauthorized, appErr.ErrUnauthorized, "unauthorized")
	case err == errors.ErrForbidden:
		response.Error(c, http.StatusForbidden, appErr.ErrForbidden, "forbidden")
	case err == errors.ErrNotFound || errors.IsNotFound(err):
		response.Error(c, http.StatusNotFound, appErr.ErrNotFound, "not found")
	case err == errors.ErrInvalid:
		response.Error(c, http.StatusUnprocessableEntity, appErr.ErrInvalid, "invalid request")
	case err == errors.ErrConflict || errors.IsConflict(err):
		response.Error(c, http.StatusConflict, appErr.ErrConflict, "conflict")
	case err == errors.ErrRateLimited || errors.IsRateLimited(err):
		response.RetryAfter(c, 1)
		response.Error(c, http.StatusTooManyRequests, appErr.ErrRateLimited, "rate limited")
	case err == errors.ErrUpstreamTransient:
		response.Error(c, http.StatusBadGateway, appErr.ErrUpstreamTransient, "upstream temporarily unavailable")
	case err == errors.ErrUpstreamFatal:
		response.Error(c, http.StatusBadGateway, appErr.ErrUpstreamFatal, "upstream request failed")
	default:
		response.Error(c, http.StatusInternalServerError, appErr.ErrInternal, "internal error")
	}
}
