package receipt

import (
	"github.com/smallbiznis/eventra/internal/receipt/render"
	"github.com/smallbiznis/eventra/internal/receipt/repository"
	"github.com/smallbiznis/eventra/internal/receipt/service"
	"go.uber.org/fx"
)

var Module = fx.Module("receipt.service",
	fx.Provide(render.NewRenderer),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
