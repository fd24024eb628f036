package router

import (
	"github.com/wiradharma/go-auth-backend/internal/application"
	"github.com/wiradharma/go-auth-backend/internal/container"
	pginfra "github.com/wiradharma/go-auth-backend/internal/infrastructure/postgres"
	handlers "github.com/wiradharma/go-auth-backend/internal/interface/http"
	"github.com/wiradharma/go-auth-backend/internal/router/modules"
)

func buildService() *application.Service {
	cfg := container.GetConfig()
	repo := pginfra.NewUserRepository(container.GetPGPool())

	return application.NewService(
		repo,
		container.GetJWT(),
		container.GetGoogleVerifier(),
		container.GetGCS(),
		cfg.GCSBucket,
		container.GetRedis(),
		container.GetLogger(),
		container.GetES(),
		cfg.ESUsersIndex,
		cfg.ProfileCacheTTL,
	)
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	svc := buildService()

	authHandler := handlers.NewAuthHandler(svc, container.GetLogger(), cfg.CookieDomain, cfg.CookieSecure)
	userHandler := handlers.NewUserHandler(svc, container.GetLogger())

	r.Add(modules.NewAuthModule(authHandler, container.GetJWT()))
	r.Add(modules.NewUserModule(userHandler, container.GetJWT()))
}
