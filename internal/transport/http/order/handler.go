package order

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/subext/internal/config"
	"github.com/Additional-Code/subext/internal/dto"
	"github.com/Additional-Code/subext/internal/presentation/http/response"
	service "github.com/Additional-Code/subext/internal/service/order"
	"github.com/Additional-Code/subext/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/subext/transport/http/order")

// maxBody bounds an extension payload; larger requests get 413.
const maxBody = "2M"

// Handler exposes the order extension over HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewHandler constructs an order extension Handler.
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register routes with the provided Echo instance. When token is set every
// route requires "Authorization: Bearer <token>".
func Register(e *echo.Echo, h *Handler, token string) {
	g := e.Group("/extensions/orders", middleware.BodyLimit(maxBody))
	if token != "" {
		g.Use(bearerAuth(token))
	}
	g.POST("", h.handle)
	g.GET("/:id/dispatches", h.dispatches)
}

func (h *Handler) handle(c echo.Context) error {
	b := response.Extension(c)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		return b.WithError(errorbank.InvalidInput("invalid payload", errorbank.WithCause(err))).Build()
	}
	req, err := dto.DecodeExtensionRequest(body)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "extensions.orders.handle", trace.WithAttributes(
		attribute.String("extension.action", req.Action),
		attribute.String("order.id", req.Resource.ID),
	))
	defer span.End()

	result, err := h.svc.Handle(ctx, req.Action, req.Resource)
	if err != nil {
		appErr := errorbank.From(err)
		span.SetAttributes(attribute.String("error.kind", string(appErr.Kind())))
		if !appErr.IsClientError() {
			h.logger.Error("order extension failed",
				zap.String("action", req.Action),
				zap.String("order_id", req.Resource.ID),
				zap.Error(err),
			)
		}
		return b.WithError(appErr).Build()
	}

	return b.WithStatus(result.StatusCode).WithActions(result.Actions).Build()
}

func (h *Handler) dispatches(c echo.Context) error {
	b := response.New(c)

	orderID := c.Param("id")
	ctx, span := httpTracer.Start(c.Request().Context(), "extensions.orders.dispatches", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	dispatches, err := h.svc.Dispatches(ctx, orderID)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.DispatchResponse, 0, len(dispatches))
	for _, d := range dispatches {
		out = append(out, dto.NewDispatchResponse(d))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func bearerAuth(token string) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return response.Extension(c).
				WithStatus(http.StatusUnauthorized).
				WithError(errorbank.Unauthorized("missing or invalid bearer token", errorbank.WithCause(err))).
				Build()
		},
	})
}

// RegisterFromConfig wires routes using the configured auth token.
func RegisterFromConfig(e *echo.Echo, h *Handler, cfg config.Config) {
	Register(e, h, cfg.Extension.AuthToken)
}
