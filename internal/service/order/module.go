package order

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/subext/internal/client/subscription"
)

// Module provides the order service to Fx, backed by the subscription service client.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Provide(func(c *subscription.Client) Registrar { return c }),
)
