package cashier

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/shared"
)

// SessionStatus is the cash session lifecycle state.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// MovementType classifies a cash drawer movement.
type MovementType string

const (
	MovementSale       MovementType = "sale"
	MovementSupply     MovementType = "supply"
	MovementWithdrawal MovementType = "withdrawal"
	MovementRefund     MovementType = "refund"
	MovementAdjustment MovementType = "adjustment"
)

// Valid reports whether the type is known.
func (t MovementType) Valid() bool {
	switch t {
	case MovementSale, MovementSupply, MovementWithdrawal, MovementRefund, MovementAdjustment:
		return true
	}
	return false
}

// RequiresReason reports whether the type must carry a reason.
func (t MovementType) RequiresReason() bool {
	switch t {
	case MovementWithdrawal, MovementRefund, MovementAdjustment:
		return true
	}
	return false
}

// Session is one cash register shift. Closing figures stay nil until
// the session closes, then never change again.
type Session struct {
	ID             int64            `json:"id"`
	RegisterID     int64            `json:"register_id"`
	OpenedBy       int64            `json:"opened_by"`
	OpeningAmount  decimal.Decimal  `json:"opening_amount"`
	Status         SessionStatus    `json:"status"`
	OpenedAt       time.Time        `json:"opened_at"`
	ClosedAt       *time.Time       `json:"closed_at,omitempty"`
	ClosingAmount  *decimal.Decimal `json:"closing_amount,omitempty"`
	ExpectedAmount *decimal.Decimal `json:"expected_amount,omitempty"`
	Difference     *decimal.Decimal `json:"difference,omitempty"`
	IsConsistent   *bool            `json:"is_consistent,omitempty"`
	Notes          string           `json:"notes,omitempty"`
}

// Movement is one cash drawer entry.
type Movement struct {
	ID        int64           `json:"id"`
	SessionID int64           `json:"session_id"`
	Type      MovementType    `json:"movement_type"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
	RefSaleID *int64          `json:"ref_sale_id,omitempty"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// MovementInput is the request to record a drawer movement.
type MovementInput struct {
	SessionID int64
	Type      MovementType
	Amount    decimal.Decimal
	Reason    string
	CreatedBy int64
}

// Totals aggregates drawer movements per type.
type Totals struct {
	Sales       decimal.Decimal `json:"sales"`
	Supplies    decimal.Decimal `json:"supplies"`
	Withdrawals decimal.Decimal `json:"withdrawals"`
	Refunds     decimal.Decimal `json:"refunds"`
	Adjustments decimal.Decimal `json:"adjustments"`
}

// Report is the full picture of one session.
type Report struct {
	Session   Session    `json:"session"`
	Totals    Totals     `json:"totals"`
	Expected  decimal.Decimal `json:"expected"`
	Movements []Movement `json:"movements"`
}

var (
	ErrNotFound       = fmt.Errorf("cashier: session: %w", shared.ErrNotFound)
	ErrSessionClosed  = fmt.Errorf("cashier: session is closed: %w", shared.ErrInvalidState)
	ErrAlreadyOpen    = fmt.Errorf("cashier: an open session already exists: %w", shared.ErrConflict)
	ErrInvalidAmount  = fmt.Errorf("cashier: amount must be > 0: %w", shared.ErrValidation)
	ErrInvalidType    = fmt.Errorf("cashier: invalid movement type: %w", shared.ErrValidation)
	ErrReasonRequired = fmt.Errorf("cashier: reason required for this movement: %w", shared.ErrValidation)
)

// consistencyTolerance is the largest closing difference still counted
// as a consistent drawer.
var consistencyTolerance = decimal.RequireFromString("0.01")

// ExpectedAmount computes the cash that should be in the drawer.
func ExpectedAmount(opening decimal.Decimal, t Totals) decimal.Decimal {
	return opening.
		Add(t.Sales).
		Add(t.Supplies).
		Sub(t.Withdrawals).
		Sub(t.Refunds).
		Add(t.Adjustments)
}

// Consistent reports whether the counted difference is within
// tolerance.
func Consistent(difference decimal.Decimal) bool {
	return difference.Abs().LessThanOrEqual(consistencyTolerance)
}
