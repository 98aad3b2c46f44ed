package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/sagaflow/pkg/api"
)

// runStoreContract exercises the InstanceStore semantics every backend must
// satisfy. Backend test files call it with their own constructor.
func runStoreContract(t *testing.T, newStore func(t *testing.T) InstanceStore) {
	t.Helper()

	newInstance := func(orderID string) *api.Instance {
		now := time.Now()
		return &api.Instance{
			OrderID: orderID,
			Order: api.Order{
				OrderID:       orderID,
				ProductID:     "prod-1",
				Quantity:      2,
				Amount:        2499,
				PaymentMethod: "CREDIT_CARD",
				Email:         "buyer@example.com",
			},
			Stage:     api.StageValidate,
			Status:    api.StatusPending,
			Attempts:  map[api.Stage]int{},
			Payload:   map[string]any{},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	t.Run("create and get", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		inst := newInstance("order-1")
		require.NoError(t, store.CreateInstance(ctx, inst))
		assert.Equal(t, int64(1), inst.Version)

		got, err := store.GetInstance(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, "order-1", got.OrderID)
		assert.Equal(t, api.StatusPending, got.Status)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, "CREDIT_CARD", got.Order.PaymentMethod)
	})

	t.Run("create duplicate", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.CreateInstance(ctx, newInstance("order-1")))
		err := store.CreateInstance(ctx, newInstance("order-1"))
		require.ErrorIs(t, err, api.ErrDuplicateOrder)
	})

	t.Run("get not found", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetInstance(context.Background(), "missing")
		require.ErrorIs(t, err, api.ErrOrderNotFound)
	})

	t.Run("update bumps version", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		inst := newInstance("order-1")
		require.NoError(t, store.CreateInstance(ctx, inst))

		inst.Status = api.StatusRunning
		require.NoError(t, store.UpdateInstance(ctx, inst, 1))
		assert.Equal(t, int64(2), inst.Version)

		got, err := store.GetInstance(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, api.StatusRunning, got.Status)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("update stale version conflicts", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		inst := newInstance("order-1")
		require.NoError(t, store.CreateInstance(ctx, inst))
		require.NoError(t, store.UpdateInstance(ctx, inst, 1))

		// A writer holding the old version must lose.
		stale := inst.Clone()
		err := store.UpdateInstance(ctx, stale, 1)
		require.ErrorIs(t, err, api.ErrVersionConflict)

		got, err := store.GetInstance(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("update missing instance", func(t *testing.T) {
		store := newStore(t)
		err := store.UpdateInstance(context.Background(), newInstance("missing"), 1)
		require.ErrorIs(t, err, api.ErrOrderNotFound)
	})

	t.Run("body round trip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		inst := newInstance("order-1")
		require.NoError(t, store.CreateInstance(ctx, inst))

		inst.Stage = api.StageNotify
		inst.Attempts = map[api.Stage]int{api.StagePay: 1, api.StageNotify: 2}
		inst.Payload = map[string]any{
			"validate.stock":      10,
			"pay.confirmation_id": "conf-1",
		}
		inst.CompletedStages = []api.Stage{api.StageValidate, api.StagePay, api.StageAdjustInventory}
		inst.Unresolved = []string{"ADJUST_INVENTORY: inventory service down"}
		inst.LastError = "mail service unavailable"
		require.NoError(t, store.UpdateInstance(ctx, inst, 1))

		got, err := store.GetInstance(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, api.StageNotify, got.Stage)
		assert.Equal(t, inst.Attempts, got.Attempts)
		assert.Equal(t, inst.Payload, got.Payload)
		assert.Equal(t, inst.CompletedStages, got.CompletedStages)
		assert.Equal(t, inst.Unresolved, got.Unresolved)
		assert.Equal(t, "mail service unavailable", got.LastError)
	})

	t.Run("list by status", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		a := newInstance("order-a")
		require.NoError(t, store.CreateInstance(ctx, a))
		b := newInstance("order-b")
		require.NoError(t, store.CreateInstance(ctx, b))

		b.Status = api.StatusSucceeded
		require.NoError(t, store.UpdateInstance(ctx, b, 1))

		all, err := store.ListInstances(ctx, InstanceFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		pending, err := store.ListInstances(ctx, InstanceFilter{Status: api.StatusPending})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "order-a", pending[0].OrderID)
	})

	t.Run("list runnable", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		now := time.Now()

		ready := newInstance("order-ready")
		ready.UpdatedAt = now.Add(-3 * time.Minute)
		require.NoError(t, store.CreateInstance(ctx, ready))

		parked := newInstance("order-parked")
		parked.RunAfter = now.Add(time.Hour)
		require.NoError(t, store.CreateInstance(ctx, parked))

		// Abandoned unwind: no write since long before the staleness window.
		compensating := newInstance("order-compensating")
		compensating.Status = api.StatusCompensating
		compensating.UpdatedAt = now.Add(-2 * time.Minute)
		require.NoError(t, store.CreateInstance(ctx, compensating))

		// Claimed recently: some worker owns it.
		claimed := newInstance("order-claimed")
		claimed.Status = api.StatusRunning
		require.NoError(t, store.CreateInstance(ctx, claimed))

		// A live unwind is a claim too; it must not be offered to workers.
		unwinding := newInstance("order-unwinding")
		unwinding.Status = api.StatusCompensating
		require.NoError(t, store.CreateInstance(ctx, unwinding))

		// Claimed long ago with no write since: presumed crashed.
		stale := newInstance("order-stale")
		stale.Status = api.StatusRunning
		stale.UpdatedAt = now.Add(-time.Minute)
		require.NoError(t, store.CreateInstance(ctx, stale))

		done := newInstance("order-done")
		done.Status = api.StatusSucceeded
		require.NoError(t, store.CreateInstance(ctx, done))

		ids, err := store.ListRunnable(ctx, now, 30*time.Second, 10)
		require.NoError(t, err)
		// Oldest write first.
		assert.Equal(t, []string{"order-ready", "order-compensating", "order-stale"}, ids)

		limited, err := store.ListRunnable(ctx, now, 30*time.Second, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.CreateInstance(ctx, newInstance("order-1")))
		require.NoError(t, store.DeleteInstance(ctx, "order-1"))

		_, err := store.GetInstance(ctx, "order-1")
		require.ErrorIs(t, err, api.ErrOrderNotFound)

		require.ErrorIs(t, store.DeleteInstance(ctx, "order-1"), api.ErrOrderNotFound)
	})
}
