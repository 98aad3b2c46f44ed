package persistence

import (
	"context"
	"time"

	"github.com/petrijr/sagaflow/pkg/api"
)

// InstanceFilter is used to select instances from the store.
// A zero status means "no filter".
type InstanceFilter struct {
	Status api.Status
}

// InstanceStore is the durable, versioned persistence contract for workflow
// instances, keyed by order id.
//
// Writes use optimistic concurrency: UpdateInstance commits only when the
// stored version still equals expectedVersion, so two orchestrator workers
// racing on the same instance cannot both commit conflicting transitions.
// Exactly one wins; the loser gets api.ErrVersionConflict and re-reads.
type InstanceStore interface {
	// CreateInstance persists a new instance with Version 1. Returns
	// api.ErrDuplicateOrder if a record already exists for the order id.
	CreateInstance(ctx context.Context, inst *api.Instance) error

	// GetInstance returns the instance for the order id, or
	// api.ErrOrderNotFound.
	GetInstance(ctx context.Context, orderID string) (*api.Instance, error)

	// UpdateInstance commits inst if the stored version equals
	// expectedVersion, bumping Version and UpdatedAt (reflected back on
	// inst). Returns api.ErrVersionConflict on a lost race.
	UpdateInstance(ctx context.Context, inst *api.Instance, expectedVersion int64) error

	// ListInstances returns instances matching the filter.
	ListInstances(ctx context.Context, filter InstanceFilter) ([]*api.Instance, error)

	// ListRunnable returns up to limit order ids eligible for a tick at
	// 'now': PENDING instances whose RunAfter has passed, plus RUNNING or
	// COMPENSATING instances whose last write is older than staleAfter
	// (a crashed worker never committed its tick). Oldest first.
	ListRunnable(ctx context.Context, now time.Time, staleAfter time.Duration, limit int) ([]string, error)

	// DeleteInstance removes the record. The engine only archives terminal
	// instances; stores do not re-check.
	DeleteInstance(ctx context.Context, orderID string) error
}
