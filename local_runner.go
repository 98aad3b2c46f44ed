package sagaflow

import (
	"context"
	"errors"
	"time"

	"github.com/petrijr/sagaflow/pkg/fulfill"
	"github.com/petrijr/sagaflow/pkg/queue"
	"github.com/petrijr/sagaflow/pkg/worker"
)

// LocalRunner bundles an in-memory Engine, in-memory collaborators, and a
// worker pool into a simple process-local runtime for development and tests.
//
// Typical usage:
//
//	runner, _ := sagaflow.NewLocalRunner()
//	runner.Inventory.Seed("prod-1", 100)
//
//	// Synchronous:
//	runner.Engine.Submit(ctx, order)
//	inst, _ := runner.Engine.Run(ctx, order.OrderID)
//
//	// Asynchronous, driven by the worker pool:
//	_ = runner.StartWorkers(ctx, 2)
//	runner.Engine.Submit(ctx, order)
//	inst, _ = runner.Wait(ctx, order.OrderID)
//	runner.Stop()
//
// LocalRunner is intentionally not crash-durable.
type LocalRunner struct {
	// Engine is the in-memory engine used by this runner.
	Engine Engine

	// Inventory, Gateway, and Receipts are the in-memory collaborators bound
	// into the workflow. Seed Inventory before submitting orders.
	Inventory *fulfill.MemoryInventory
	Gateway   *fulfill.MemoryGateway
	Receipts  *fulfill.MemoryReceipts

	// Notifications receives the customer notifications published by the
	// NOTIFY stage.
	Notifications *queue.InMemoryQueue

	pool *worker.Pool
}

// NewLocalRunner constructs a LocalRunner with the full fulfillment workflow
// wired to in-memory collaborators.
func NewLocalRunner() (*LocalRunner, error) {
	r := &LocalRunner{
		Inventory:     fulfill.NewMemoryInventory(),
		Gateway:       fulfill.NewMemoryGateway(),
		Receipts:      fulfill.NewMemoryReceipts(),
		Notifications: queue.NewInMemoryQueue(1024),
	}

	registry, err := fulfill.Workflow(fulfill.Dependencies{
		Inventory: r.Inventory,
		Gateway:   r.Gateway,
		Publisher: r.Notifications,
		Receipts:  r.Receipts,
	})
	if err != nil {
		return nil, err
	}

	r.Engine, err = NewInMemoryEngine(registry)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// StartWorkers starts a pool of 'concurrency' workers polling the engine.
// If StartWorkers is called more than once without Stop, it returns an error.
func (r *LocalRunner) StartWorkers(ctx context.Context, concurrency int) error {
	if r.pool != nil {
		return errors.New("sagaflow: LocalRunner already started")
	}
	pool := worker.NewPool(r.Engine, worker.Options{
		Concurrency:  concurrency,
		PollInterval: 10 * time.Millisecond,
	})
	if err := pool.Start(ctx); err != nil {
		return err
	}
	r.pool = pool
	return nil
}

// Stop shuts down the worker pool started by StartWorkers and waits for the
// workers to exit.
func (r *LocalRunner) Stop() {
	if r.pool == nil {
		return
	}
	r.pool.Stop()
	r.pool = nil
}

// Wait polls until the order's workflow reaches a terminal status or ctx is
// cancelled. It only observes; the workers (or another caller) must be
// driving the workflow.
func (r *LocalRunner) Wait(ctx context.Context, orderID string) (*Instance, error) {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		inst, err := r.Engine.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if inst.Status.Terminal() {
			return inst, nil
		}

		select {
		case <-ctx.Done():
			return inst, ctx.Err()
		case <-ticker.C:
		}
	}
}
