package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/sagaflow/pkg/api"
)

func TestInMemoryStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) InstanceStore {
		return NewInMemoryStore()
	})
}

func TestInMemoryStoreDoesNotAliasCallerState(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	inst := &api.Instance{
		OrderID:   "order-1",
		Status:    api.StatusPending,
		Attempts:  map[api.Stage]int{},
		Payload:   map[string]any{"k": "v"},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.CreateInstance(ctx, inst))

	// Mutating the caller's copy must not leak into the store.
	inst.Payload["k"] = "mutated"
	inst.Status = api.StatusFailed

	got, err := store.GetInstance(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "v", got.Payload["k"])
	assert.Equal(t, api.StatusPending, got.Status)

	// And mutating a read result must not either.
	got.Payload["k"] = "mutated"
	again, err := store.GetInstance(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Payload["k"])
}

func TestInMemoryStoreConcurrentCASExactlyOneWins(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	inst := &api.Instance{
		OrderID:   "order-1",
		Status:    api.StatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.CreateInstance(ctx, inst))

	const writers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	conflicts := 0

	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			attempt := inst.Clone()
			attempt.Status = api.StatusRunning
			err := store.UpdateInstance(ctx, attempt, 1)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			default:
				require.ErrorIs(t, err, api.ErrVersionConflict)
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, conflicts)

	got, err := store.GetInstance(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}
