package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/wiradharma/go-auth-backend/internal/interface/http"
	"github.com/wiradharma/go-auth-backend/internal/interface/middleware"
	"github.com/wiradharma/go-auth-backend/pkg/helpers"
)

// AuthModule wires the auth HTTP handlers into routes.
// Public: POST /api/register, /api/login, /api/refresh, /api/auth/google
// Protected: POST /api/logout, POST /api/change-password

type AuthModule struct {
	Handler *handlers.AuthHandler
	JWT     *helpers.JWTManager
}

func NewAuthModule(h *handlers.AuthHandler, jwt *helpers.JWTManager) *AuthModule {
	return &AuthModule{Handler: h, JWT: jwt}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	rg.POST("/register", m.Handler.Register)
	rg.POST("/login", m.Handler.Login)
	rg.POST("/refresh", m.Handler.Refresh)
	rg.POST("/auth/google", m.Handler.GoogleLogin)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT))
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.POST("/change-password", m.Handler.ChangePassword)
	}
}
