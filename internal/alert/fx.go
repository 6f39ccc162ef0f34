package alert

import (
	"github.com/smallbiznis/eventra/internal/alert/repository"
	"github.com/smallbiznis/eventra/internal/alert/service"
	"go.uber.org/fx"
)

var Module = fx.Module("alert.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
