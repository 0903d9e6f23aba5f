// Package masterdata manages products, categories and suppliers backing the
// stock ledger and procurement.
package masterdata

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/shared"
)

// Errors returned by masterdata operations.
var (
	ErrNotFound      = fmt.Errorf("masterdata: %w", shared.ErrNotFound)
	ErrAlreadyExists = fmt.Errorf("masterdata: duplicate entry: %w", shared.ErrConflict)
)

// Product models a sellable item.
type Product struct {
	ID          int64
	SKU         string
	Name        string
	Description string
	CategoryID  *int64
	CostPrice   decimal.Decimal
	SellPrice   decimal.Decimal
	MinStock    float64
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Category groups products.
type Category struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Supplier models a purchasing counterparty.
type Supplier struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	CNPJ      string
	City      string
	State     string
	IsActive  bool
	CreatedAt time.Time
	DeletedAt *time.Time
}

// ProductInput creates a product.
type ProductInput struct {
	SKU         string
	Name        string
	Description string
	CategoryID  *int64
	CostPrice   decimal.Decimal
	SellPrice   decimal.Decimal
	MinStock    float64
}

// ProductPatch applies a partial update with explicit optional fields.
type ProductPatch struct {
	Name        *string
	Description *string
	CategoryID  *int64
	CostPrice   *decimal.Decimal
	SellPrice   *decimal.Decimal
	MinStock    *float64
	IsActive    *bool
}

// SupplierInput creates a supplier.
type SupplierInput struct {
	Name  string
	Email string
	Phone string
	CNPJ  string
	City  string
	State string
}

// SupplierPatch applies a partial update.
type SupplierPatch struct {
	Name     *string
	Email    *string
	Phone    *string
	City     *string
	State    *string
	IsActive *bool
}

// ListFilter narrows product listings.
type ListFilter struct {
	Search     string
	CategoryID int64
	ActiveOnly bool
	Limit      int
	Offset     int
}
