package procurement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/shared"
)

// Status is the purchase order lifecycle state.
type Status string

const (
	StatusOrdered  Status = "ordered"
	StatusPartial  Status = "partial"
	StatusReceived Status = "received"
	StatusCanceled Status = "canceled"
)

// Order is a purchase order placed with a supplier.
type Order struct {
	ID         int64           `json:"id"`
	SupplierID int64           `json:"supplier_id"`
	Status     Status          `json:"status"`
	Total      decimal.Decimal `json:"total"`
	Notes      string          `json:"notes,omitempty"`
	Items      []OrderItem     `json:"items,omitempty"`
	CreatedBy  int64           `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// OrderItem is one ordered line. Received tracks how much of the
// ordered quantity has arrived so far.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  float64         `json:"quantity"`
	Received  float64         `json:"received"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// Outstanding is the quantity still expected.
func (i OrderItem) Outstanding() float64 {
	return i.Quantity - i.Received
}

// OrderInput creates a purchase order.
type OrderInput struct {
	SupplierID int64
	Notes      string
	CreatedBy  int64
	Items      []OrderItemInput
}

// OrderItemInput is one requested line.
type OrderItemInput struct {
	ProductID int64
	Quantity  float64
	UnitCost  decimal.Decimal
}

// ReceiptItem is one delivered line.
type ReceiptItem struct {
	ProductID int64
	Quantity  float64
}

// ReceiptInput registers a delivery against an order.
type ReceiptInput struct {
	OrderID    int64
	Items      []ReceiptItem
	DueDate    time.Time
	ReceivedBy int64
}

// ReceiptResult reports the state after a delivery.
type ReceiptResult struct {
	Order         Order           `json:"order"`
	PayableID     int64           `json:"payable_id"`
	ReceivedValue decimal.Decimal `json:"received_value"`
}

// ListFilter narrows order listings.
type ListFilter struct {
	SupplierID int64
	Status     Status
	Limit      int
	Offset     int
}

var (
	ErrNotFound      = fmt.Errorf("procurement: order: %w", shared.ErrNotFound)
	ErrEmptyOrder    = fmt.Errorf("procurement: order needs at least one item: %w", shared.ErrValidation)
	ErrInvalidItem   = fmt.Errorf("procurement: item quantity and cost must be positive: %w", shared.ErrValidation)
	ErrEmptyReceipt  = fmt.Errorf("procurement: receipt needs at least one item: %w", shared.ErrValidation)
	ErrNotReceivable = fmt.Errorf("procurement: order cannot receive deliveries: %w", shared.ErrInvalidState)
	ErrNotCancelable = fmt.Errorf("procurement: order has received stock: %w", shared.ErrInvalidState)
	ErrUnknownItem   = fmt.Errorf("procurement: product not on order: %w", shared.ErrValidation)
	ErrOverReceipt   = fmt.Errorf("procurement: received more than ordered: %w", shared.ErrValidation)
)
