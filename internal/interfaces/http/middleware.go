package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/garyjia/erp-workflow/internal/pkg/errors"
)

// UserIDHeader carries the caller identity set by the upstream session provider
const UserIDHeader = "X-User-ID"

const userIDKey = "user_id"

// requireUser rejects requests without an identity header
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Code:    apperrors.CodeUnauthenticated,
				Error:   "missing " + UserIDHeader + " header",
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}
