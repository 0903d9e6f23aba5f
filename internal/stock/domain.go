package stock

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/shared"
)

// MovementType classifies a stock ledger entry.
type MovementType string

const (
	MovementIn     MovementType = "IN"
	MovementOut    MovementType = "OUT"
	MovementAdjust MovementType = "ADJUST"
)

// Valid reports whether the movement type is known.
func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjust:
		return true
	}
	return false
}

// Movement is an append-only stock ledger entry. Quantity is always
// positive for IN and OUT; ADJUST carries a signed quantity.
type Movement struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Type      MovementType    `json:"type"`
	Quantity  float64         `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Reason    string          `json:"reason"`
	RefType   string          `json:"ref_type,omitempty"`
	RefID     int64           `json:"ref_id,omitempty"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// MovementInput carries the fields callers provide when posting.
type MovementInput struct {
	ProductID int64
	Type      MovementType
	Quantity  float64
	UnitCost  decimal.Decimal
	Reason    string
	RefType   string
	RefID     int64
	CreatedBy int64
}

// ListFilter narrows movement listings.
type ListFilter struct {
	ProductID int64
	Type      MovementType
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// Level pairs a product with its current on-hand quantity.
type Level struct {
	ProductID int64   `json:"product_id"`
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	MinStock  float64 `json:"min_stock"`
	OnHand    float64 `json:"on_hand"`
}

var (
	ErrInvalidQuantity   = fmt.Errorf("stock: invalid quantity: %w", shared.ErrValidation)
	ErrInvalidType       = fmt.Errorf("stock: invalid movement type: %w", shared.ErrValidation)
	ErrInsufficientStock = fmt.Errorf("stock: %w", shared.ErrInsufficientStock)
	ErrProductNotFound   = fmt.Errorf("stock: product: %w", shared.ErrNotFound)
)

// SignedQuantity returns the delta a movement applies to on-hand stock.
func SignedQuantity(t MovementType, qty float64) float64 {
	if t == MovementOut {
		return -qty
	}
	return qty
}
