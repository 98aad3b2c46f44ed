// Package fulfill contains the order-fulfillment steps and the narrow
// interfaces they need from the outside world.
//
// Each step wraps exactly one external collaborator (inventory, payment,
// notification, receipts) and translates its failures into workflow outcomes:
// retryable for transient faults, permanent for domain rejections. Callers
// observe failures only through the workflow status and last-error reason,
// never through provider-specific errors.
package fulfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petrijr/sagaflow/pkg/queue"
)

// Payload keys written by the steps. Keys are namespaced by stage and
// write-once: once a stage has committed a key, no later stage overwrites it.
const (
	// KeyStock is the stock level observed at validation time.
	KeyStock = "validate.stock"

	// KeyConfirmationID is the payment confirmation id returned by the
	// gateway. It survives compensation so a refunded charge stays auditable.
	KeyConfirmationID = "pay.confirmation_id"

	// KeyInventoryDelta is the signed quantity applied to stock.
	KeyInventoryDelta = "inventory.delta"

	// KeyNotified marks that the customer notification was published.
	KeyNotified = "notify.sent"

	// KeyReceiptURL is the location of the stored receipt document.
	KeyReceiptURL = "receipt.url"
)

// ErrStockConflict is returned by InventoryStore.Adjust when the adjustment
// would drive stock negative (a concurrent workflow won the remaining units).
var ErrStockConflict = errors.New("stock conflict")

// ErrUnsupportedMethod is returned by PaymentGateway.Charge for payment
// methods the gateway will never accept. It maps to a permanent failure.
var ErrUnsupportedMethod = errors.New("unsupported payment method")

// InventoryStore is the stock-keeping collaborator.
type InventoryStore interface {
	// Stock returns the current stock level for a product.
	Stock(ctx context.Context, productID string) (int, error)

	// Adjust applies a signed delta to a product's stock and returns the new
	// level. It must reject adjustments that would drive the level negative
	// with ErrStockConflict, atomically under concurrent callers.
	Adjust(ctx context.Context, productID string, delta int) (int, error)
}

// PaymentGateway is the payment collaborator.
type PaymentGateway interface {
	// Charge captures a payment and returns a confirmation id. Declines and
	// other final rejections are plain errors; faults worth retrying must be
	// wrapped with MarkTransient.
	Charge(ctx context.Context, orderID string, amount int64, method string) (string, error)

	// Refund reverses a previously captured charge. It must be idempotent:
	// refunding an already-refunded charge succeeds.
	Refund(ctx context.Context, confirmationID string) error
}

// Publisher publishes customer notifications. Delivery is at-least-once.
type Publisher interface {
	Publish(ctx context.Context, n queue.Notification) error
}

// Receipt is the immutable order receipt document.
type Receipt struct {
	OrderID   string    `json:"orderId"`
	Email     string    `json:"email"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Date      time.Time `json:"date"`
}

// ReceiptStore persists receipts keyed by order id and returns the stored
// document's location. Writing the same receipt twice must succeed and
// return the same location.
type ReceiptStore interface {
	Put(ctx context.Context, r Receipt) (string, error)
}

// transientError marks a collaborator error as worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("transient: %v", e.err)
}

func (e *transientError) Unwrap() error {
	return e.err
}

// MarkTransient wraps err so steps classify it as a retryable failure rather
// than a final rejection.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was wrapped with MarkTransient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
