package sagaflow

import (
	"database/sql"

	workerpkg "github.com/petrijr/sagaflow/pkg/worker"
)

// WorkerBundle wires together an Engine and a worker Pool that drives its
// workflows.
type WorkerBundle struct {
	Engine Engine
	Pool   *workerpkg.Pool
}

// NewSQLiteBundle constructs a durable Engine + worker Pool combo persisting
// workflow instances in the provided *sql.DB.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:orders.db?_journal=WAL")
//	bundle, err := sagaflow.NewSQLiteBundle(db, registry, worker.Options{Concurrency: 4})
//	_ = bundle.Pool.Start(ctx)
//	// submit orders via bundle.Engine
func NewSQLiteBundle(db *sql.DB, registry *Registry, opts workerpkg.Options) (*WorkerBundle, error) {
	eng, err := NewSQLiteEngine(db, registry)
	if err != nil {
		return nil, err
	}
	return &WorkerBundle{
		Engine: eng,
		Pool:   workerpkg.NewPool(eng, opts),
	}, nil
}
