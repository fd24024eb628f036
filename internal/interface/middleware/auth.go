package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wiradharma/go-auth-backend/pkg/helpers"
	"github.com/wiradharma/go-auth-backend/pkg/response"
)

const CtxUserIDKey = "userID"

// Auth reads the access_token cookie, validates it, and injects the
// caller's identity into the Gin context. The access token is
// self-contained, so no store lookup happens here.
func Auth(jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("access_token")
		if err != nil || token == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			c.Abort()
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid access token", err.Error())
			c.Abort()
			return
		}
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set("userName", claims.Name)
		c.Set("userEmail", claims.Email)
		c.Set("userRole", string(claims.Role))
		c.Next()
	}
}
