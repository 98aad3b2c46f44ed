package api

import "errors"

var (
	// ErrDuplicateOrder is returned by Submit when an instance already exists
	// for the order id. Submission is idempotent: the original instance is
	// left untouched.
	ErrDuplicateOrder = errors.New("duplicate order")

	// ErrOrderNotFound is returned when no instance exists for the order id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrVersionConflict indicates a lost compare-and-swap race. It is
	// internal to the orchestrator: a conflicting tick aborts and re-reads,
	// and the error never reaches a status caller.
	ErrVersionConflict = errors.New("version conflict")
)

// Stable failure reasons surfaced through Instance.LastError. Callers observe
// only status plus these reasons, regardless of which backing service failed.
const (
	ReasonInsufficientStock   = "insufficient stock"
	ReasonPaymentNotSupported = "payment method not supported"
	ReasonInventoryConflict   = "inventory conflict"
	ReasonCancelRequested     = "cancel requested"
)
