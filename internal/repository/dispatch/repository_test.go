package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/subext/internal/config"
	"github.com/Additional-Code/subext/internal/database"
	"github.com/Additional-Code/subext/internal/entity"
	"github.com/Additional-Code/subext/internal/migration"
)

func newSQLiteConnections(t *testing.T) *database.Connections {
	t.Helper()

	conns, err := database.Open(config.Database{
		Driver:       "sqlite",
		WriterDSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	mig, err := migration.New(conns, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, mig.Up(context.Background()))

	return conns
}

func TestRepositoryRecordAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewRecorder(newSQLiteConnections(t))
	require.IsType(t, &Repository{}, repo)

	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	records := []*entity.Dispatch{
		{OrderID: "order-1", LineItemID: "li-1", CustomerID: "c-1", Frequency: "monthly", StartDate: "15-01-2024", EndDate: "15-06-2024", Status: entity.DispatchRegistered, CreatedAt: now},
		{OrderID: "order-1", LineItemID: "li-2", CustomerID: "c-1", Status: entity.DispatchFailed, Error: "subscription service responded 502 Bad Gateway", CreatedAt: now},
		{OrderID: "order-2", LineItemID: "li-9", CustomerID: "c-2", Status: entity.DispatchRegistered, CreatedAt: now},
	}
	for _, d := range records {
		require.NoError(t, repo.Record(ctx, d))
		assert.NotZero(t, d.ID)
	}

	got, err := repo.ListByOrder(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "li-1", got[0].LineItemID)
	assert.Equal(t, "monthly", got[0].Frequency)
	assert.Equal(t, entity.DispatchFailed, got[1].Status)
	assert.Contains(t, got[1].Error, "502")

	none, err := repo.ListByOrder(ctx, "order-unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordRejectsNil(t *testing.T) {
	repo := NewRepository(newSQLiteConnections(t))
	assert.Error(t, repo.Record(context.Background(), nil))
}

func TestNoopRecorderWhenDisabled(t *testing.T) {
	repo := NewRecorder(&database.Connections{Driver: "noop"})

	assert.NoError(t, repo.Record(context.Background(), &entity.Dispatch{OrderID: "order-1"}))
	_, err := repo.ListByOrder(context.Background(), "order-1")
	assert.ErrorIs(t, err, database.ErrDisabled)
}
