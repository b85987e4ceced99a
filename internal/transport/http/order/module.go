package order

import (
	"go.uber.org/fx"
)

// Module wires the HTTP order extension handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(RegisterFromConfig),
)
