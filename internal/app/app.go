package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/subext/internal/cache"
	"github.com/Additional-Code/subext/internal/client/subscription"
	"github.com/Additional-Code/subext/internal/config"
	"github.com/Additional-Code/subext/internal/database"
	"github.com/Additional-Code/subext/internal/logger"
	"github.com/Additional-Code/subext/internal/messaging"
	"github.com/Additional-Code/subext/internal/observability"
	repositorydispatch "github.com/Additional-Code/subext/internal/repository/dispatch"
	grpcserver "github.com/Additional-Code/subext/internal/server/grpc"
	httpserver "github.com/Additional-Code/subext/internal/server/http"
	serviceorder "github.com/Additional-Code/subext/internal/service/order"
	transporthttp "github.com/Additional-Code/subext/internal/transport/http"
	"github.com/Additional-Code/subext/internal/worker"
	workerorder "github.com/Additional-Code/subext/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	logger.Module,
	observability.Module,
	cache.Module,
	database.Module,
	messaging.Module,
	repositorydispatch.Module,
	subscription.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP extension endpoint and the gRPC health server on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker consumes queued extension payloads.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
