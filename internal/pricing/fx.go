package pricing

import (
	"github.com/smallbiznis/eventra/internal/cache"
	"github.com/smallbiznis/eventra/internal/pricing/repository"
	"github.com/smallbiznis/eventra/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.service",
	fx.Provide(cache.NewSnapshotCache),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
