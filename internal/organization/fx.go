package organization

import (
	"github.com/smallbiznis/eventra/internal/organization/event"
	"github.com/smallbiznis/eventra/internal/organization/repository"
	"github.com/smallbiznis/eventra/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(event.NewOutboxPublisher),
	fx.Provide(service.NewService),
)
