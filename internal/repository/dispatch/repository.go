package dispatch

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/subext/internal/database"
	"github.com/Additional-Code/subext/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/subext/repository/dispatch")

// Recorder stores the outcome of every registration attempt.
type Recorder interface {
	Record(ctx context.Context, d *entity.Dispatch) error
	ListByOrder(ctx context.Context, orderID string) ([]entity.Dispatch, error)
}

// NewRecorder returns a bun-backed Repository, or a no-op recorder when the
// database is disabled.
func NewRecorder(conns *database.Connections) Recorder {
	if !conns.Enabled() {
		return noopRecorder{}
	}
	return NewRepository(conns)
}

// Repository encapsulates read/write access for dispatch records.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Record inserts a dispatch row using the write connection.
func (r *Repository) Record(ctx context.Context, d *entity.Dispatch) error {
	if d == nil {
		return errors.New("nil dispatch")
	}
	ctx, span := repoTracer.Start(ctx, "DispatchRepository.Record", trace.WithAttributes(
		attribute.String("order.id", d.OrderID),
		attribute.String("line_item.id", d.LineItemID),
		attribute.String("dispatch.status", d.Status),
	))
	defer span.End()

	_, err := r.writer.NewInsert().Model(d).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// ListByOrder returns the dispatches of an order, oldest first, from the read replica when available.
func (r *Repository) ListByOrder(ctx context.Context, orderID string) ([]entity.Dispatch, error) {
	ctx, span := repoTracer.Start(ctx, "DispatchRepository.ListByOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	var dispatches []entity.Dispatch
	err := r.reader.NewSelect().
		Model(&dispatches).
		Where("order_id = ?", orderID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return dispatches, nil
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, *entity.Dispatch) error { return nil }

func (noopRecorder) ListByOrder(context.Context, string) ([]entity.Dispatch, error) {
	return nil, database.ErrDisabled
}
