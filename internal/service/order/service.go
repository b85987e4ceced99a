package order

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Additional-Code/subext/internal/cache"
	"github.com/Additional-Code/subext/internal/client/subscription"
	"github.com/Additional-Code/subext/internal/config"
	"github.com/Additional-Code/subext/internal/database"
	"github.com/Additional-Code/subext/internal/entity"
	"github.com/Additional-Code/subext/internal/observability"
	"github.com/Additional-Code/subext/internal/repository/dispatch"
	"github.com/Additional-Code/subext/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/subext/service/order")

// Actions the platform sends with an extension call.
const (
	ActionCreate = "Create"
	ActionUpdate = "Update"
)

// Registrar registers one subscription with the subscription service.
type Registrar interface {
	Add(ctx context.Context, sub entity.SubscriptionRequest) error
}

// Service handles order extension calls.
type Service struct {
	registrar   Registrar
	guard       *cache.Guard
	recorder    dispatch.Recorder
	instruments *observability.Instruments
	logger      *zap.Logger
	typeID      string
	deadline    time.Duration
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Config      config.Config
	Logger      *zap.Logger
	Registrar   Registrar
	Guard       *cache.Guard               `optional:"true"`
	Recorder    dispatch.Recorder          `optional:"true"`
	Instruments *observability.Instruments `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registrar:   p.Registrar,
		guard:       p.Guard,
		recorder:    p.Recorder,
		instruments: p.Instruments,
		logger:      logger,
		typeID:      p.Config.Extension.SubscriptionTypeID,
		deadline:    p.Config.Extension.Deadline,
	}
}

// Handle routes an extension call by action. Only Create is processed.
func (s *Service) Handle(ctx context.Context, action string, resource *entity.OrderResource) (entity.Result, error) {
	var (
		result entity.Result
		err    error
	)

	switch action {
	case ActionCreate:
		result, err = s.Create(ctx, resource)
	case ActionUpdate:
		err = errorbank.UnsupportedAction("Update action is not supported")
	default:
		err = errorbank.UnrecognizedAction(fmt.Sprintf("The action is not recognized. Allowed values are '%s'.", ActionCreate))
	}

	s.instruments.Invocation(ctx, actionLabel(action), outcomeLabel(err))
	return result, err
}

// Create registers every subscription line item of the order with the
// subscription service. All registrations run concurrently; if any fails the
// call fails, and registrations that already succeeded are kept.
func (s *Service) Create(ctx context.Context, resource *entity.OrderResource) (entity.Result, error) {
	draft := resource.Clone()
	if draft == nil || draft.Obj == nil {
		return entity.Result{}, errorbank.InvalidInput("order resource is required")
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(
		attribute.String("order.id", draft.ID),
		attribute.Int("order.line_items", len(draft.Obj.LineItems)),
	))
	defer span.End()

	items := s.subscriptionLineItems(draft.Obj)
	requests := make([]entity.SubscriptionRequest, 0, len(items))
	for _, item := range items {
		req, err := BuildRequest(draft.Obj.CustomerID, item)
		if err != nil {
			span.SetStatus(codes.Error, "invalid line item")
			return entity.Result{}, errorbank.InvalidInput(
				fmt.Sprintf("line item %s: %v", item.ID, err),
				errorbank.WithDetail("lineItemId", item.ID),
			)
		}
		requests = append(requests, req)
	}
	span.SetAttributes(attribute.Int("order.subscriptions", len(requests)))

	if len(requests) == 0 {
		s.logger.Debug("order has no subscription line items", zap.String("order_id", draft.ID))
		return success(), nil
	}

	if s.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deadline)
		defer cancel()
	}

	// A plain Group: one failure must not cancel the sibling registrations.
	var (
		g      errgroup.Group
		failed atomic.Int32
	)
	for _, req := range requests {
		g.Go(func() error {
			if err := s.register(ctx, draft.ID, req); err != nil {
				failed.Add(1)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration failed")
		s.logger.Error("subscription registration failed",
			zap.String("order_id", draft.ID),
			zap.Int32("failed", failed.Load()),
			zap.Int("total", len(requests)),
			zap.Error(err),
		)

		message := fmt.Sprintf("Failed to process order: %v", err)
		opts := []errorbank.Option{
			errorbank.WithDetail("failed", int(failed.Load())),
			errorbank.WithDetail("total", len(requests)),
		}
		if subscription.IsTimeout(err) {
			return entity.Result{}, errorbank.Timeout(message, opts...)
		}
		return entity.Result{}, errorbank.API(message, opts...)
	}

	s.logger.Info("subscriptions registered",
		zap.String("order_id", draft.ID),
		zap.String("customer_id", draft.Obj.CustomerID),
		zap.Int("count", len(requests)),
	)
	return success(), nil
}

func (s *Service) subscriptionLineItems(order *entity.Order) []entity.LineItem {
	var items []entity.LineItem
	for _, item := range order.LineItems {
		if item.ProductType.ID == s.typeID {
			items = append(items, item)
		}
	}
	return items
}

// register sends one registration and records its outcome. Bookkeeping uses a
// context detached from the deadline so outcomes are kept after expiry.
func (s *Service) register(ctx context.Context, orderID string, req entity.SubscriptionRequest) error {
	bookkeeping := context.WithoutCancel(ctx)
	record := &entity.Dispatch{
		OrderID:    orderID,
		LineItemID: req.ProductID,
		CustomerID: req.CustomerID,
		Frequency:  req.Frequency,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	}

	if s.guard != nil {
		claimed, err := s.guard.Claim(ctx, orderID, req.ProductID)
		if err != nil {
			s.logger.Warn("registration guard unavailable", zap.String("line_item_id", req.ProductID), zap.Error(err))
		} else if !claimed {
			s.logger.Info("line item already registered; skipping",
				zap.String("order_id", orderID),
				zap.String("line_item_id", req.ProductID),
			)
			record.Status = entity.DispatchSkipped
			s.record(bookkeeping, record)
			s.instruments.Registration(ctx, entity.DispatchSkipped, 0)
			return nil
		}
	}

	start := time.Now()
	err := s.registrar.Add(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		if s.guard != nil {
			if relErr := s.guard.Release(bookkeeping, orderID, req.ProductID); relErr != nil {
				s.logger.Warn("registration guard release failed", zap.String("line_item_id", req.ProductID), zap.Error(relErr))
			}
		}
		record.Status = entity.DispatchFailed
		record.Error = err.Error()
		s.record(bookkeeping, record)
		s.instruments.Registration(bookkeeping, entity.DispatchFailed, elapsed)
		return err
	}

	if s.guard != nil {
		if confErr := s.guard.Confirm(bookkeeping, orderID, req.ProductID); confErr != nil {
			s.logger.Warn("registration guard confirm failed", zap.String("line_item_id", req.ProductID), zap.Error(confErr))
		}
	}
	record.Status = entity.DispatchRegistered
	s.record(bookkeeping, record)
	s.instruments.Registration(bookkeeping, entity.DispatchRegistered, elapsed)

	s.logger.Debug("subscription registered",
		zap.String("order_id", orderID),
		zap.String("line_item_id", req.ProductID),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (s *Service) record(ctx context.Context, d *entity.Dispatch) {
	if s.recorder == nil {
		return
	}
	d.CreatedAt = time.Now().UTC()
	if err := s.recorder.Record(ctx, d); err != nil {
		s.logger.Warn("dispatch log write failed",
			zap.String("order_id", d.OrderID),
			zap.String("line_item_id", d.LineItemID),
			zap.Error(err),
		)
	}
}

// Dispatches returns the dispatch log of an order.
func (s *Service) Dispatches(ctx context.Context, orderID string) ([]entity.Dispatch, error) {
	if s.recorder == nil {
		return nil, errorbank.NotFound("dispatch log is disabled")
	}
	dispatches, err := s.recorder.ListByOrder(ctx, orderID)
	if errors.Is(err, database.ErrDisabled) {
		return nil, errorbank.NotFound("dispatch log is disabled")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load dispatches", errorbank.WithCause(err))
	}
	if len(dispatches) == 0 {
		return nil, errorbank.NotFound("no dispatches for order")
	}
	return dispatches, nil
}

func success() entity.Result {
	return entity.Result{StatusCode: 200, Actions: []entity.UpdateAction{}}
}

func actionLabel(action string) string {
	switch action {
	case ActionCreate, ActionUpdate:
		return action
	default:
		return "other"
	}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(errorbank.From(err).Kind())
}
