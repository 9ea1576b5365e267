package router

import (
	userapp "cardroom/internal/application"
	"cardroom/internal/container"
	pginfra "cardroom/internal/infrastructure/postgres"
	handlers "cardroom/internal/interface/http"
	"cardroom/internal/router/modules"
)

func buildAccountModule() *modules.AccountModule {
	cfg := container.GetConfig()
	repo := pginfra.NewUserRepository(container.GetPGPool())

	service := userapp.NewService(
		repo,
		container.GetJWT(),
		container.GetGCS(),
		cfg.GCSBucket,
		container.GetRedis(),
		container.GetLogger(),
		container.GetES(),
		cfg.ESUsersIndex,
		container.GetRabbitPub(),
		cfg.MailSendEnabled,
	)

	handler := handlers.NewAccountHandler(
		service,
		container.GetLogger(),
		cfg.CookieDomain,
		cfg.CookieSecure,
	)

	return modules.NewAccountModule(handler, container.GetJWT())
}

// InitModules initializes all application modules and registers them with the
// router registry. Called once during startup.
func InitModules(r *Registry) {
	r.Add(buildAccountModule())
}
