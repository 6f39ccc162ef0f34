package addon

import (
	"github.com/smallbiznis/eventra/internal/addon/repository"
	"github.com/smallbiznis/eventra/internal/addon/service"
	"go.uber.org/fx"
)

var Module = fx.Module("addon.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
