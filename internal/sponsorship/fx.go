package sponsorship

import (
	"github.com/smallbiznis/eventra/internal/sponsorship/repository"
	"github.com/smallbiznis/eventra/internal/sponsorship/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sponsorship.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
