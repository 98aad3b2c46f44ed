package sagaflow

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/petrijr/sagaflow/pkg/fulfill"
	"github.com/petrijr/sagaflow/pkg/queue"
)

func fulfillmentRegistry(t *testing.T) (*Registry, *fulfill.MemoryInventory) {
	t.Helper()

	inventory := fulfill.NewMemoryInventory()
	inventory.Seed("prod-1", 10)

	registry, err := fulfill.Workflow(fulfill.Dependencies{
		Inventory: inventory,
		Gateway:   fulfill.NewMemoryGateway(),
		Publisher: queue.NewInMemoryQueue(16),
		Receipts:  fulfill.NewMemoryReceipts(),
	})
	require.NoError(t, err)
	return registry, inventory
}

func TestFacadeRunWithSQLiteEngine(t *testing.T) {
	registry, _ := fulfillmentRegistry(t)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	eng, err := NewSQLiteEngine(db, registry)
	require.NoError(t, err)
	ctx := context.Background()

	inst, err := Submit(ctx, eng, Order{
		OrderID:       "order-1",
		ProductID:     "prod-1",
		Quantity:      2,
		Amount:        2499,
		PaymentMethod: "CREDIT_CARD",
		Email:         "buyer@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, inst.Status)

	inst, err = Run(ctx, eng, "order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, inst.Status)

	view, err := GetStatus(ctx, eng, "order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, view.Status)
	assert.Empty(t, view.LastError)
}

func TestFacadeObserverMetrics(t *testing.T) {
	registry, _ := fulfillmentRegistry(t)

	metrics := &BasicMetrics{}
	eng, err := NewInMemoryEngineWithObserver(registry, NewCompositeObserver(metrics))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = Submit(ctx, eng, Order{
		OrderID:       "order-1",
		ProductID:     "prod-1",
		Quantity:      1,
		Amount:        999,
		PaymentMethod: "CREDIT_CARD",
		Email:         "buyer@example.com",
	})
	require.NoError(t, err)
	_, err = Run(ctx, eng, "order-1")
	require.NoError(t, err)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.OrdersSubmitted)
	assert.Equal(t, int64(1), snap.OrdersSucceeded)
	assert.Equal(t, int64(0), snap.OrdersInFlight)
	assert.Equal(t, int64(5), snap.StagesCompleted)
}

func TestFacadeCancel(t *testing.T) {
	registry, _ := fulfillmentRegistry(t)
	eng, err := NewInMemoryEngine(registry)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = Submit(ctx, eng, Order{
		OrderID:       "order-1",
		ProductID:     "prod-1",
		Quantity:      1,
		Amount:        999,
		PaymentMethod: "CREDIT_CARD",
		Email:         "buyer@example.com",
	})
	require.NoError(t, err)
	require.NoError(t, RequestCancel(ctx, eng, "order-1"))

	inst, err := Run(ctx, eng, "order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompensated, inst.Status)
}
