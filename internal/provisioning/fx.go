package provisioning

import (
	"go.uber.org/fx"
)

// Module provides the consumer only. The scheduler owns the polling loop so
// the cadence, locking and metrics live in one place.
var Module = fx.Module("organization.provisioning",
	fx.Provide(NewConsumer),
)
