package receivables

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/shared"
)

// Status is the receivable lifecycle state.
type Status string

const (
	StatusOpen     Status = "open"
	StatusPartial  Status = "partial"
	StatusPaid     Status = "paid"
	StatusOverdue  Status = "overdue"
	StatusCanceled Status = "canceled"
)

// Receivable is one installment owed by a customer for one sale.
// Invariant: 0 <= PaidAmount <= Amount, and status is paid exactly
// when PaidAmount >= Amount.
type Receivable struct {
	ID                int64           `json:"id"`
	CustomerID        int64           `json:"customer_id"`
	SaleID            int64           `json:"sale_id"`
	InstallmentNumber int             `json:"installment_number"`
	DueDate           time.Time       `json:"due_date"`
	Amount            decimal.Decimal `json:"amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	Status            Status          `json:"status"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Remaining returns the unpaid balance.
func (r Receivable) Remaining() decimal.Decimal {
	return r.Amount.Sub(r.PaidAmount)
}

// Payment is an immutable record of one payment applied to a
// receivable.
type Payment struct {
	ID           int64           `json:"id"`
	ReceivableID int64           `json:"receivable_id"`
	Amount       decimal.Decimal `json:"amount"`
	PaidBy       int64           `json:"paid_by"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PaymentResult reports the outcome of one payment application.
type PaymentResult struct {
	Receivable Receivable      `json:"receivable"`
	Payment    Payment         `json:"payment"`
	AppliedAmount decimal.Decimal `json:"applied_amount"`
}

// ListFilter narrows receivable listings.
type ListFilter struct {
	CustomerID int64
	SaleID     int64
	Status     Status
	DueBefore  time.Time
	Limit      int
	Offset     int
}

// SweepResult reports one overdue sweep run.
type SweepResult struct {
	MarkedOverdue     int     `json:"marked_overdue"`
	AffectedCustomers []int64 `json:"affected_customers"`
}

var (
	ErrNotFound       = fmt.Errorf("receivables: %w", shared.ErrNotFound)
	ErrAlreadyPaid    = fmt.Errorf("receivables: already paid: %w", shared.ErrInvalidState)
	ErrCanceled       = fmt.Errorf("receivables: canceled: %w", shared.ErrInvalidState)
	ErrInvalidAmount  = fmt.Errorf("receivables: amount must be > 0: %w", shared.ErrValidation)
)
