package fulfill

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryInventory is an in-memory InventoryStore for tests, examples, and
// the local runner.
type MemoryInventory struct {
	mu    sync.Mutex
	stock map[string]int
}

// NewMemoryInventory creates an empty inventory.
func NewMemoryInventory() *MemoryInventory {
	return &MemoryInventory{stock: make(map[string]int)}
}

var _ InventoryStore = (*MemoryInventory)(nil)

// Seed sets the stock level for a product.
func (m *MemoryInventory) Seed(productID string, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = quantity
}

func (m *MemoryInventory) Stock(_ context.Context, productID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[productID], nil
}

func (m *MemoryInventory) Adjust(_ context.Context, productID string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.stock[productID] + delta
	if next < 0 {
		return m.stock[productID], ErrStockConflict
	}
	m.stock[productID] = next
	return next, nil
}

// MemoryGateway is an in-memory PaymentGateway. It accepts a fixed set of
// payment methods and records charges and refunds for assertions.
type MemoryGateway struct {
	mu       sync.Mutex
	methods  map[string]bool
	charges  map[string]string // confirmation id -> order id
	refunded map[string]bool

	// ChargeErr, when set, is returned by Charge instead of capturing.
	ChargeErr error
	// RefundErr, when set, is returned by Refund.
	RefundErr error
}

// NewMemoryGateway creates a gateway accepting the given payment methods.
// With no methods given it accepts "CREDIT_CARD".
func NewMemoryGateway(methods ...string) *MemoryGateway {
	if len(methods) == 0 {
		methods = []string{"CREDIT_CARD"}
	}
	accepted := make(map[string]bool, len(methods))
	for _, m := range methods {
		accepted[m] = true
	}
	return &MemoryGateway{
		methods:  accepted,
		charges:  make(map[string]string),
		refunded: make(map[string]bool),
	}
}

var _ PaymentGateway = (*MemoryGateway)(nil)

func (g *MemoryGateway) Charge(_ context.Context, orderID string, amount int64, method string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ChargeErr != nil {
		return "", g.ChargeErr
	}
	if !g.methods[method] {
		return "", ErrUnsupportedMethod
	}
	if amount <= 0 {
		return "", fmt.Errorf("invalid amount: %d", amount)
	}

	confirmationID := uuid.NewString()
	g.charges[confirmationID] = orderID
	return confirmationID, nil
}

func (g *MemoryGateway) Refund(_ context.Context, confirmationID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.RefundErr != nil {
		return g.RefundErr
	}
	if _, ok := g.charges[confirmationID]; !ok {
		return fmt.Errorf("unknown charge: %s", confirmationID)
	}
	g.refunded[confirmationID] = true
	return nil
}

// Charges returns the number of captured charges.
func (g *MemoryGateway) Charges() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}

// Refunded reports whether the given charge was refunded.
func (g *MemoryGateway) Refunded(confirmationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunded[confirmationID]
}

// MemoryReceipts is an in-memory ReceiptStore.
type MemoryReceipts struct {
	mu       sync.Mutex
	receipts map[string]Receipt
}

// NewMemoryReceipts creates an empty receipt store.
func NewMemoryReceipts() *MemoryReceipts {
	return &MemoryReceipts{receipts: make(map[string]Receipt)}
}

var _ ReceiptStore = (*MemoryReceipts)(nil)

func (m *MemoryReceipts) Put(_ context.Context, r Receipt) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[r.OrderID] = r
	return "mem://receipts/" + r.OrderID + ".json", nil
}

// Get returns the stored receipt for an order, if any.
func (m *MemoryReceipts) Get(orderID string) (Receipt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[orderID]
	return r, ok
}
