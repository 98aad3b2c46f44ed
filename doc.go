// Package sagaflow provides an embeddable saga orchestrator for order
// fulfillment.
//
// Sagaflow drives each submitted order through a fixed sequence of stages
// (validate, pay, adjust inventory, notify, receipt) and, when a stage fails
// permanently, compensates the completed stages in reverse order so the
// system converges to a consistent state. It runs fully in Go, supports
// multiple persistence backends, and integrates into existing services
// without external workflow infrastructure.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Engine
//  2. Registry and Steps
//  3. Worker Pool
//  4. Observer
//  5. LocalRunner
//
// # Engine
//
// The Engine persists workflow instances and provides APIs to submit orders,
// tick instances forward, and read their state. Submission is an
// acknowledgment: the caller gets back a PENDING instance and polls its
// status while workers advance it.
//
// Engines can be backed by different storage systems:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - Postgres
//   - Redis
//
// All progress is committed with optimistic concurrency: every instance
// carries a version, writes compare-and-swap on it, and a tick that loses a
// race simply re-reads and retries. There are no locks or leases, so any
// number of engine workers can share a store.
//
// # Registry and Steps
//
// The workflow graph is fixed and assembled once at startup: a Registry maps
// each stage to a Step implementation and a RetryPolicy. A Step wraps one
// external collaborator and classifies its failures as retryable or
// permanent; steps with reversible effects also implement Compensator.
// The pkg/fulfill package provides the five fulfillment steps and the narrow
// collaborator interfaces they consume.
//
// # Worker Pool
//
// Workers poll the store for runnable instances (pending work whose backoff
// has elapsed, plus forward or compensating claims abandoned by crashed
// workers) and tick each one. Retry backoff is expressed through the persisted RunAfter
// timestamp, so a waiting instance occupies no worker.
//
// # Observer
//
// Observers receive lifecycle callbacks (submission, stage completion,
// compensation, terminal transitions) and back the built-in structured
// logging (log/slog), the in-process BasicMetrics counters, and the
// Prometheus observer in pkg/metrics.
//
// # LocalRunner
//
// LocalRunner bundles an in-memory engine, in-memory collaborators, and a
// worker pool into a single process-local helper for development and unit
// testing. It is intentionally not crash-durable.
//
// For examples, see the /examples directory.
package sagaflow
