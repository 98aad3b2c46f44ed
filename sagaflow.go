package sagaflow

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/sagaflow/internal/engine"
	"github.com/petrijr/sagaflow/internal/persistence"
	"github.com/petrijr/sagaflow/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine               = api.Engine
	Instance             = api.Instance
	Order                = api.Order
	Request              = api.Request
	Stage                = api.Stage
	Status               = api.Status
	StatusView           = api.StatusView
	ListOptions          = api.ListOptions
	Outcome              = api.Outcome
	StepResult           = api.StepResult
	Step                 = api.Step
	Compensator          = api.Compensator
	RetryPolicy          = api.RetryPolicy
	Registry             = api.Registry
	StageBinding         = api.StageBinding
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Re-export common helpers.

var (
	NewRegistry          = api.NewRegistry
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export stage and status values for convenience.

const (
	StageValidate        = api.StageValidate
	StagePay             = api.StagePay
	StageAdjustInventory = api.StageAdjustInventory
	StageNotify          = api.StageNotify
	StageReceipt         = api.StageReceipt

	StatusPending      = api.StatusPending
	StatusRunning      = api.StatusRunning
	StatusSucceeded    = api.StatusSucceeded
	StatusFailed       = api.StatusFailed
	StatusCompensating = api.StatusCompensating
	StatusCompensated  = api.StatusCompensated
)

// Re-export the error taxonomy.

var (
	ErrDuplicateOrder  = api.ErrDuplicateOrder
	ErrOrderNotFound   = api.ErrOrderNotFound
	ErrVersionConflict = api.ErrVersionConflict
)

// Engine constructors
// These wrap the internal packages so external callers never need to import
// them directly.

// NewInMemoryEngine returns an Engine backed by a non-durable in-memory
// store, running the workflow defined by the registry.
func NewInMemoryEngine(registry *Registry) (Engine, error) {
	return engine.New(engine.Config{
		Store:    persistence.NewInMemoryStore(),
		Registry: registry,
	})
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given Observer.
func NewInMemoryEngineWithObserver(registry *Registry, obs Observer) (Engine, error) {
	return engine.New(engine.Config{
		Store:    persistence.NewInMemoryStore(),
		Registry: registry,
		Observer: obs,
	})
}

// NewSQLiteEngine returns an Engine that persists workflow instances in a
// SQLite database. The caller supplies an *sql.DB opened with a SQLite
// driver such as modernc.org/sqlite.
func NewSQLiteEngine(db *sql.DB, registry *Registry) (Engine, error) {
	return NewSQLiteEngineWithObserver(db, registry, nil)
}

// NewSQLiteEngineWithObserver returns a SQLite-backed Engine with the given Observer.
func NewSQLiteEngineWithObserver(db *sql.DB, registry *Registry, obs Observer) (Engine, error) {
	store, err := persistence.NewSQLiteInstanceStore(db)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Config{
		Store:    store,
		Registry: registry,
		Observer: obs,
	})
}

// NewPostgresEngine returns an Engine that persists instances in PostgreSQL.
// The caller supplies an *sql.DB opened with a PostgreSQL driver such as
// jackc/pgx/v5/stdlib.
func NewPostgresEngine(db *sql.DB, registry *Registry) (Engine, error) {
	return NewPostgresEngineWithObserver(db, registry, nil)
}

// NewPostgresEngineWithObserver returns a Postgres-backed Engine with the given Observer.
func NewPostgresEngineWithObserver(db *sql.DB, registry *Registry, obs Observer) (Engine, error) {
	store, err := persistence.NewPostgresInstanceStore(db)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Config{
		Store:    store,
		Registry: registry,
		Observer: obs,
	})
}

// NewRedisEngine returns an Engine that persists instances in Redis.
func NewRedisEngine(client *redis.Client, registry *Registry) (Engine, error) {
	return NewRedisEngineWithObserver(client, registry, nil)
}

// NewRedisEngineWithObserver returns a Redis-backed Engine with the given Observer.
func NewRedisEngineWithObserver(client *redis.Client, registry *Registry, obs Observer) (Engine, error) {
	return engine.New(engine.Config{
		Store:    persistence.NewRedisInstanceStore(client, ""),
		Registry: registry,
		Observer: obs,
	})
}

// Convenience helpers that just forward to the underlying Engine.

// Submit creates a new workflow instance for the order. The returned
// instance is an acknowledgment (PENDING), not a completion.
func Submit(ctx context.Context, eng Engine, order Order) (*Instance, error) {
	return eng.Submit(ctx, order)
}

// Run drives an order's workflow to a terminal status.
func Run(ctx context.Context, eng Engine, orderID string) (*Instance, error) {
	return eng.Run(ctx, orderID)
}

// GetStatus fetches the read-only status projection for an order.
func GetStatus(ctx context.Context, eng Engine, orderID string) (StatusView, error) {
	return eng.Status(ctx, orderID)
}

// RequestCancel marks an order's workflow for cancellation. The request is
// advisory and takes effect at the next tick boundary.
func RequestCancel(ctx context.Context, eng Engine, orderID string) error {
	return eng.RequestCancel(ctx, orderID)
}
