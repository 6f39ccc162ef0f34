package dashboard

import (
	"github.com/smallbiznis/eventra/internal/dashboard/rollup"
	"github.com/smallbiznis/eventra/internal/dashboard/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dashboard.service",
	fx.Provide(service.NewService),
	fx.Provide(rollup.NewService),
)
