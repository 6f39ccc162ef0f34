package registration

import (
	"github.com/smallbiznis/eventra/internal/registration/liveevents"
	"github.com/smallbiznis/eventra/internal/registration/repository"
	"github.com/smallbiznis/eventra/internal/registration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("registration.service",
	fx.Provide(liveevents.NewHub),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
