package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/keyshelf/keyshelf/utils"
)

// minAdminKeyLength guards against exposing admin routes with a weak or
// accidental default secret.
const minAdminKeyLength = 8

// AdminAuth protects the admin route group with a single shared secret.
// The credential comes from X-Admin-Key, falling back to a bearer token.
// All holders of the secret are equivalent; there is no per-admin identity.
func AdminAuth(configuredKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if len(configuredKey) < minAdminKeyLength {
			utils.Fail(ctx, http.StatusServiceUnavailable,
				"admin API is not configured (set ADMIN_API_KEY with at least 8 characters)")
			ctx.Abort()
			return
		}

		supplied := extractAdminKey(ctx)
		if supplied == "" {
			utils.Fail(ctx, http.StatusUnauthorized,
				"missing admin key, send X-Admin-Key or Authorization: Bearer <key>")
			ctx.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(supplied), []byte(configuredKey)) != 1 {
			utils.Fail(ctx, http.StatusForbidden, "invalid admin key")
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}

func extractAdminKey(ctx *gin.Context) string {
	if key := strings.TrimSpace(ctx.GetHeader("X-Admin-Key")); key != "" {
		return key
	}
	auth := strings.TrimSpace(ctx.GetHeader("Authorization"))
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
