package order

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/subext/internal/config"
	"github.com/Additional-Code/subext/internal/dto"
	"github.com/Additional-Code/subext/internal/entity"
	"github.com/Additional-Code/subext/internal/messaging"
	ordersvc "github.com/Additional-Code/subext/internal/service/order"
	"github.com/Additional-Code/subext/internal/worker"
	"github.com/Additional-Code/subext/pkg/errorbank"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/subext/worker/order")

// Module registers order extension worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(func(svc *ordersvc.Service) Extension { return svc }),
	fx.Provide(
		fx.Annotate(
			NewExtensionHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// Extension runs an order extension call.
type Extension interface {
	Handle(ctx context.Context, action string, resource *entity.OrderResource) (entity.Result, error)
}

// NewExtensionHandler consumes queued extension payloads. Payloads the
// extension rejects are acknowledged; failures worth retrying are returned so
// the message is delivered again.
func NewExtensionHandler(logger *zap.Logger, cfg config.Config, ext Extension) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.extension", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		req, err := dto.DecodeExtensionRequest(msg.Value)
		if err != nil {
			logger.Warn("dropping malformed extension payload", zap.Int64("offset", msg.Offset), zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		span.SetAttributes(
			attribute.String("extension.action", req.Action),
			attribute.String("order.id", req.Resource.ID),
		)

		if _, err := ext.Handle(ctx, req.Action, req.Resource); err != nil {
			appErr := errorbank.From(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, string(appErr.Kind()))
			if appErr.IsClientError() {
				logger.Warn("extension payload rejected",
					zap.String("action", req.Action),
					zap.String("order_id", req.Resource.ID),
					zap.String("kind", string(appErr.Kind())),
					zap.String("message", appErr.Message()),
				)
				return nil
			}
			return err
		}

		logger.Info("queued extension payload processed",
			zap.String("action", req.Action),
			zap.String("order_id", req.Resource.ID),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
