package api

import "context"

// StatusView is the read-only projection of an instance exposed to callers
// polling for an order's outcome.
type StatusView struct {
	OrderID   string
	Status    Status
	Stage     Stage
	LastError string
}

// ListOptions controls how instances are listed.
// Zero values mean "no filter" for that field.
type ListOptions struct {
	Status Status
}

// Engine drives order workflows through the fixed stage sequence.
//
// Multiple engine workers may run concurrently against the same store: no
// instance is pinned to a worker, and per-tick ownership is decided by the
// store's compare-and-swap, not by locks.
type Engine interface {
	// Submit creates a new workflow instance for the order and returns it as
	// a submission acknowledgment (StatusPending), not a completion. Returns
	// ErrDuplicateOrder if an instance already exists for the order id.
	Submit(ctx context.Context, order Order) (*Instance, error)

	// Tick performs one transition on the instance: claim, invoke the
	// current stage's step once, and commit the outcome. Terminal instances
	// are returned unchanged. Lost compare-and-swap races are retried from a
	// fresh read a bounded number of times.
	Tick(ctx context.Context, orderID string) (*Instance, error)

	// Run drives the instance to a terminal status, sleeping through retry
	// backoff windows. It is context-aware and returns early on cancellation.
	Run(ctx context.Context, orderID string) (*Instance, error)

	// Get returns the full instance record.
	Get(ctx context.Context, orderID string) (*Instance, error)

	// Status returns the read-only status projection.
	Status(ctx context.Context, orderID string) (StatusView, error)

	// List returns instances matching the given options.
	List(ctx context.Context, opts ListOptions) ([]*Instance, error)

	// PollRunnable returns up to limit order ids that are ready for a tick:
	// pending instances whose backoff window has passed, and running or
	// compensating instances with no recent write (presumed crashed).
	PollRunnable(ctx context.Context, limit int) ([]string, error)

	// RequestCancel marks the instance for cancellation. The flag is
	// advisory: it is observed at the start of a tick, never mid-invocation,
	// and then moves the instance straight to compensation. Cancelling a
	// terminal instance is a no-op.
	RequestCancel(ctx context.Context, orderID string) error

	// Archive deletes a terminal (SUCCEEDED or COMPENSATED) instance.
	// In-flight instances are never deleted.
	Archive(ctx context.Context, orderID string) error
}
