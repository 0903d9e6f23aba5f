package sales

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/shared"
)

// Status is the sale lifecycle state.
type Status string

const (
	StatusOpen     Status = "open"
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

// PaymentMode is how a sale is settled.
type PaymentMode string

const (
	ModeCash   PaymentMode = "cash"
	ModeCard   PaymentMode = "card"
	ModeDebit  PaymentMode = "debit"
	ModePix    PaymentMode = "pix"
	ModeCredit PaymentMode = "credit"
)

// Immediate reports whether the mode settles in full at checkout.
func (m PaymentMode) Immediate() bool {
	switch m {
	case ModeCash, ModeCard, ModeDebit, ModePix:
		return true
	}
	return false
}

// Valid reports whether the mode is known.
func (m PaymentMode) Valid() bool {
	return m.Immediate() || m == ModeCredit
}

// Sale is the aggregate root. Total is the running sum of item
// subtotals; DiscountTotal reduces the payable amount.
type Sale struct {
	ID            int64           `json:"id"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	Status        Status          `json:"status"`
	Total         decimal.Decimal `json:"total"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	Items         []Item          `json:"items,omitempty"`
	Payments      []Payment       `json:"payments,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TotalDue is the amount the customer owes after discount.
func (s Sale) TotalDue() decimal.Decimal {
	return s.Total.Sub(s.DiscountTotal)
}

// Item is one sale line.
type Item struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	ProductID int64           `json:"product_id"`
	Quantity  float64         `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Payment is one settlement record against a sale.
type Payment struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	Mode      PaymentMode     `json:"mode"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// CheckoutInput drives the checkout transaction.
type CheckoutInput struct {
	SaleID         int64
	Mode           PaymentMode
	Installments   int
	CashSessionID  int64
	IdempotencyKey string
	ActorID        int64
}

// CheckoutResult reports the state after checkout.
type CheckoutResult struct {
	Sale         Sale            `json:"sale"`
	Installments int             `json:"installments,omitempty"`
	TotalDue     decimal.Decimal `json:"total_due"`
}

// ListFilter narrows sale listings.
type ListFilter struct {
	CustomerID int64
	Status     Status
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

var (
	ErrNotFound         = fmt.Errorf("sales: %w", shared.ErrNotFound)
	ErrItemNotFound     = fmt.Errorf("sales: item: %w", shared.ErrNotFound)
	ErrNotOpen          = fmt.Errorf("sales: sale is not open: %w", shared.ErrInvalidState)
	ErrAlreadySettled   = fmt.Errorf("sales: sale already settled: %w", shared.ErrInvalidState)
	ErrAlreadyCanceled  = fmt.Errorf("sales: sale already canceled: %w", shared.ErrInvalidState)
	ErrEmptySale        = fmt.Errorf("sales: sale has no items: %w", shared.ErrInvalidState)
	ErrCustomerRequired = fmt.Errorf("sales: credit checkout requires a customer: %w", shared.ErrValidation)
	ErrInvalidQuantity  = fmt.Errorf("sales: quantity must be > 0: %w", shared.ErrValidation)
	ErrInvalidMode      = fmt.Errorf("sales: invalid payment mode: %w", shared.ErrValidation)
	ErrInvalidAmount    = fmt.Errorf("sales: amount must be > 0: %w", shared.ErrValidation)
)
