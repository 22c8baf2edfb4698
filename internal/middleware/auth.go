package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xxxsen/quill/internal/auth"
	"github.com/xxxsen/quill/internal/pkg/errcode"
	"github.com/xxxsen/quill/internal/pkg/logging"
	"github.com/xxxsen/quill/internal/pkg/response"
	"github.com/xxxsen/quill/internal/repo"
)

const ContextUserIDKey = "user_id"
const ContextUserEmailKey = "user_email"

// Auth resolves the Authorization header via the given TokenVerifier
// Resolver (StandardJWT / OpaqueServiceToken, tried in declared order), then
// lazily provisions the profile row so every later handler can assume
// ProfileRepo.GetByID succeeds for any authenticated caller.
func Auth(resolver *auth.Resolver, profiles *repo.ProfileRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, 401, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, 401, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		identity, err := resolver.Resolve(c.Request.Context(), parts[1])
		if err != nil {
			response.Error(c, 401, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, identity.UserID)
		if identity.Email != "" {
			c.Set(ContextUserEmailKey, identity.Email)
		}
		if profiles != nil {
			if _, err := profiles.EnsureExists(c.Request.Context(), identity.UserID, identity.UserID, identity.Email); err != nil {
				logging.From(c.Request.Context()).Warn("ensure profile failed", zap.String("user_id", identity.UserID), zap.Error(err))
			}
		}
		c.Next()
	}
}
