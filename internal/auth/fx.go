package auth

import (
	authconfig "github.com/smallbiznis/eventra/internal/auth/config"
	"github.com/smallbiznis/eventra/internal/auth/oauth"
	"github.com/smallbiznis/eventra/internal/auth/repository"
	"github.com/smallbiznis/eventra/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	fx.Provide(oauth.NewService),
	fx.Provide(authconfig.ParseAuthProvidersFromEnv),
	fx.Provide(authconfig.BuildAuthProviderRegistry),
	fx.Invoke(ensureAuthProviderRegistry),
)

func ensureAuthProviderRegistry(_ authconfig.AuthProviderRegistry) {}
