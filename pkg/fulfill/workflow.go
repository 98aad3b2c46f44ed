package fulfill

import (
	"errors"
	"time"

	"github.com/petrijr/sagaflow/pkg/api"
)

// Dependencies holds the external collaborators the workflow steps need.
// All fields are required.
type Dependencies struct {
	Inventory InventoryStore
	Gateway   PaymentGateway
	Publisher Publisher
	Receipts  ReceiptStore
}

// Default retry policies per stage. Payment gets a longer, more patient
// schedule than the cheap internal calls.
var (
	defaultRetry = api.RetryPolicy{
		MaxAttempts: 3,
		Base:        100 * time.Millisecond,
		Factor:      2,
		Cap:         2 * time.Second,
	}
	paymentRetry = api.RetryPolicy{
		MaxAttempts: 3,
		Base:        250 * time.Millisecond,
		Factor:      2,
		Cap:         5 * time.Second,
	}
)

// Workflow assembles the five-stage fulfillment registry from the given
// collaborators, with the default per-stage retry policies.
func Workflow(deps Dependencies) (*api.Registry, error) {
	if deps.Inventory == nil {
		return nil, errors.New("fulfill: inventory store is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("fulfill: payment gateway is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("fulfill: publisher is required")
	}
	if deps.Receipts == nil {
		return nil, errors.New("fulfill: receipt store is required")
	}

	return api.NewRegistry([]api.StageBinding{
		{Stage: api.StageValidate, Step: &ValidateStep{Inventory: deps.Inventory}, Retry: defaultRetry},
		{Stage: api.StagePay, Step: NewPayStep(deps.Gateway), Retry: paymentRetry},
		{Stage: api.StageAdjustInventory, Step: &AdjustInventoryStep{Inventory: deps.Inventory}, Retry: defaultRetry},
		{Stage: api.StageNotify, Step: &NotifyStep{Publisher: deps.Publisher}, Retry: defaultRetry},
		{Stage: api.StageReceipt, Step: &ReceiptStep{Receipts: deps.Receipts}, Retry: defaultRetry},
	})
}
