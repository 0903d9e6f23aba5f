package payables

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/shared"
)

// Status is the payable lifecycle state.
type Status string

const (
	StatusOpen     Status = "open"
	StatusPartial  Status = "partial"
	StatusPaid     Status = "paid"
	StatusOverdue  Status = "overdue"
	StatusCanceled Status = "canceled"
)

// Payable is one amount owed to a supplier, usually created when a
// purchase order is received.
type Payable struct {
	ID              int64           `json:"id"`
	SupplierID      int64           `json:"supplier_id"`
	PurchaseOrderID *int64          `json:"purchase_order_id,omitempty"`
	DueDate         time.Time       `json:"due_date"`
	Amount          decimal.Decimal `json:"amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	Status          Status          `json:"status"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Remaining is the unpaid balance.
func (p Payable) Remaining() decimal.Decimal {
	return p.Amount.Sub(p.PaidAmount)
}

// Payment is one disbursement against a payable.
type Payment struct {
	ID        int64           `json:"id"`
	PayableID int64           `json:"payable_id"`
	Amount    decimal.Decimal `json:"amount"`
	PaidBy    int64           `json:"paid_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// PaymentResult reports the state after one payment.
type PaymentResult struct {
	Payable       Payable         `json:"payable"`
	Payment       Payment         `json:"payment"`
	AppliedAmount decimal.Decimal `json:"applied_amount"`
}

// CreateInput registers a payable outside the purchase flow.
type CreateInput struct {
	SupplierID      int64
	PurchaseOrderID *int64
	DueDate         time.Time
	Amount          decimal.Decimal
	Notes           string
}

// ListFilter narrows payable listings.
type ListFilter struct {
	SupplierID int64
	Status     Status
	DueBefore  time.Time
	Limit      int
	Offset     int
}

// SweepResult summarises an overdue sweep.
type SweepResult struct {
	MarkedOverdue int `json:"marked_overdue"`
}

var (
	ErrNotFound      = fmt.Errorf("payables: %w", shared.ErrNotFound)
	ErrAlreadyPaid   = fmt.Errorf("payables: payable already paid: %w", shared.ErrInvalidState)
	ErrCanceled      = fmt.Errorf("payables: payable canceled: %w", shared.ErrInvalidState)
	ErrInvalidAmount = fmt.Errorf("payables: amount must be > 0: %w", shared.ErrValidation)
)
