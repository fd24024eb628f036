package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/wiradharma/go-auth-backend/internal/interface/http"
	"github.com/wiradharma/go-auth-backend/internal/interface/middleware"
	"github.com/wiradharma/go-auth-backend/pkg/helpers"
)

// UserModule wires the profile handlers into routes.
// Protected: GET/PUT /api/profile, POST /api/profile/avatar, GET /api/users/search

type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT))
	{
		auth.GET("/profile", m.Handler.GetProfile)
		auth.PUT("/profile", m.Handler.UpdateProfile)
		auth.POST("/profile/avatar", m.Handler.UploadAvatar)
		auth.GET("/users/search", m.Handler.Search)
	}
}
