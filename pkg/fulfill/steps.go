package fulfill

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/petrijr/sagaflow/pkg/api"
	"github.com/petrijr/sagaflow/pkg/queue"
)

// NotificationMessage is the customer-facing text published on successful
// processing.
const NotificationMessage = "Your order has been successfully processed!"

// ValidateStep checks that the requested quantity is in stock. It does not
// reserve anything; the actual decrement happens in AdjustInventoryStep.
type ValidateStep struct {
	Inventory InventoryStore
}

func (s *ValidateStep) Invoke(ctx context.Context, req api.Request) (api.StepResult, error) {
	stock, err := s.Inventory.Stock(ctx, req.Order.ProductID)
	if err != nil {
		return api.StepResult{}, err
	}
	if stock < req.Order.Quantity {
		return api.Permanent(api.ReasonInsufficientStock), nil
	}
	return api.Succeed(map[string]any{KeyStock: stock}), nil
}

// PayStep captures the payment through the gateway.
//
// The gateway call runs behind a circuit breaker: when the gateway has been
// failing, further charges short-circuit into retryable failures and the
// workflow backs off instead of hammering a struggling provider.
//
// Error mapping:
//   - ErrUnsupportedMethod        => permanent ("payment method not supported")
//   - MarkTransient-wrapped error => retryable
//   - open breaker                => retryable
//   - any other gateway error     => permanent decline
type PayStep struct {
	gateway PaymentGateway
	breaker *gobreaker.CircuitBreaker
}

// NewPayStep creates a PayStep with its own circuit breaker.
func NewPayStep(gateway PaymentGateway) *PayStep {
	return &PayStep{
		gateway: gateway,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "payment-gateway",
			Timeout: 10 * time.Second,
		}),
	}
}

func (s *PayStep) Invoke(ctx context.Context, req api.Request) (api.StepResult, error) {
	// Redelivered after a crash that lost the commit: the charge already
	// happened, don't capture twice.
	if _, charged := req.Payload[KeyConfirmationID]; charged {
		return api.Succeed(nil), nil
	}

	res, err := s.breaker.Execute(func() (any, error) {
		return s.gateway.Charge(ctx, req.Order.OrderID, req.Order.Amount, req.Order.PaymentMethod)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUnsupportedMethod):
			return api.Permanent(api.ReasonPaymentNotSupported), nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return api.Retryable("payment gateway circuit open"), nil
		case IsTransient(err):
			return api.Retryable(err.Error()), nil
		default:
			return api.Permanent(err.Error()), nil
		}
	}

	confirmationID, _ := res.(string)
	return api.Succeed(map[string]any{KeyConfirmationID: confirmationID}), nil
}

// Compensate refunds the captured charge. The confirmation id stays in the
// payload afterward for audit.
func (s *PayStep) Compensate(ctx context.Context, req api.Request) error {
	confirmationID, ok := req.Payload[KeyConfirmationID].(string)
	if !ok || confirmationID == "" {
		// Nothing was charged.
		return nil
	}
	return s.gateway.Refund(ctx, confirmationID)
}

// AdjustInventoryStep decrements stock by the ordered quantity.
type AdjustInventoryStep struct {
	Inventory InventoryStore
}

func (s *AdjustInventoryStep) Invoke(ctx context.Context, req api.Request) (api.StepResult, error) {
	if _, adjusted := req.Payload[KeyInventoryDelta]; adjusted {
		return api.Succeed(nil), nil
	}

	delta := -req.Order.Quantity
	if _, err := s.Inventory.Adjust(ctx, req.Order.ProductID, delta); err != nil {
		if errors.Is(err, ErrStockConflict) {
			// A concurrent workflow took the remaining units between
			// validation and here.
			return api.Permanent(api.ReasonInventoryConflict), nil
		}
		return api.StepResult{}, err
	}
	return api.Succeed(map[string]any{KeyInventoryDelta: delta}), nil
}

// Compensate returns the decremented units to stock.
func (s *AdjustInventoryStep) Compensate(ctx context.Context, req api.Request) error {
	delta, ok := req.Payload[KeyInventoryDelta].(int)
	if !ok {
		delta = -req.Order.Quantity
	}
	_, err := s.Inventory.Adjust(ctx, req.Order.ProductID, -delta)
	return err
}

// NotifyStep publishes the customer notification. There is nothing to
// compensate: a sent notification cannot be unsent, and the channel is
// at-least-once anyway.
type NotifyStep struct {
	Publisher Publisher
}

func (s *NotifyStep) Invoke(ctx context.Context, req api.Request) (api.StepResult, error) {
	err := s.Publisher.Publish(ctx, queue.Notification{
		ID:      uuid.NewString(),
		OrderID: req.Order.OrderID,
		Email:   req.Order.Email,
		Message: NotificationMessage,
		SentAt:  time.Now(),
	})
	if err != nil {
		return api.StepResult{}, err
	}
	return api.Succeed(map[string]any{KeyNotified: true}), nil
}

// ReceiptStep writes the immutable order receipt. Receipt writes are
// idempotent by key, so redelivery just overwrites the same document.
type ReceiptStep struct {
	Receipts ReceiptStore
}

func (s *ReceiptStep) Invoke(ctx context.Context, req api.Request) (api.StepResult, error) {
	url, err := s.Receipts.Put(ctx, Receipt{
		OrderID:   req.Order.OrderID,
		Email:     req.Order.Email,
		ProductID: req.Order.ProductID,
		Quantity:  req.Order.Quantity,
		Date:      time.Now(),
	})
	if err != nil {
		return api.StepResult{}, err
	}
	return api.Succeed(map[string]any{KeyReceiptURL: url}), nil
}
