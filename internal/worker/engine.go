package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/subext/internal/config"
	"github.com/Additional-Code/subext/internal/messaging"
)

// HandlerRegistration binds a message topic to a handler.
type HandlerRegistration struct {
	Topic   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine consumes extension payloads from the bus and hands them to the
// registered handlers.
type Engine struct {
	client        messaging.Client
	logger        *zap.Logger
	concurrency   int
	enabled       bool
	registrations map[string]messaging.Handler
	cancel        context.CancelFunc
	wg            *sync.WaitGroup
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	reg := make(map[string]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		reg[r.Topic] = r.Handler
	}

	return &Engine{
		client:        p.Client,
		logger:        p.Logger,
		concurrency:   max(p.Config.Messaging.Workers.Concurrency, 1),
		enabled:       p.Config.Messaging.Workers.Enabled,
		registrations: reg,
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.Start,
			OnStop:  engine.Stop,
		})
	}),
)

// Start launches the consumers. It returns immediately; consumers run until Stop.
func (e *Engine) Start(context.Context) error {
	if !e.enabled || !e.client.Enabled() {
		e.logger.Info("worker engine disabled")

		return nil
	}
	if len(e.registrations) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")

		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}

	for i := 0; i < e.concurrency; i++ {
		workerID := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}()
	}

	e.logger.Info("worker engine started",
		zap.Int("workers", e.concurrency),
		zap.String("topic", e.client.Topic()),
	)

	return nil
}

// Stop cancels the consumers and waits for in-flight messages.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")

		return nil
	}
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	restart := backoff.NewExponentialBackOff()
	restart.InitialInterval = time.Second
	restart.MaxInterval = 30 * time.Second
	restart.Reset()

	for {
		if ctx.Err() != nil {
			return
		}

		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			return e.dispatch(msgCtx, workerID, msg)
		})

		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		delay := restart.NextBackOff()
		e.logger.Error("consume loop error", zap.Error(err), zap.Int("worker", workerID), zap.Duration("backoff", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// dispatch routes msg by topic. A panicking handler is reported as an error so
// the message is delivered again.
func (e *Engine) dispatch(ctx context.Context, workerID int, msg messaging.Message) (err error) {
	handler, ok := e.registrations[msg.Topic]
	if !ok {
		e.logger.Warn("no handler for topic", zap.String("topic", msg.Topic))

		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("message handler panicked", zap.Any("panic", r), zap.Int64("offset", msg.Offset))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	e.logger.Debug("processing message",
		zap.String("topic", msg.Topic),
		zap.Int64("offset", msg.Offset),
		zap.Int("worker", workerID),
	)

	return handler(ctx, msg)
}
