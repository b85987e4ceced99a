package dispatch

import "go.uber.org/fx"

// Module provides the dispatch recorder to Fx.
var Module = fx.Provide(NewRecorder)
