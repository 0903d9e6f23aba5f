package customers

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/shared"
)

// Customer is the customer aggregate. Credit fields are owned by the
// credit engine and must not be patched directly.
type Customer struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email,omitempty"`
	CPFCNPJ       string          `json:"cpf_cnpj,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Address       string          `json:"address,omitempty"`
	CreditLimit   decimal.Decimal `json:"credit_limit"`
	CreditUsed    decimal.Decimal `json:"credit_used"`
	CreditScore   int             `json:"credit_score"`
	CreditProfile string          `json:"credit_profile"`
	CreditBlocked bool            `json:"is_credit_blocked"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     *time.Time      `json:"deleted_at,omitempty"`
}

// Input carries fields for customer creation.
type Input struct {
	Name        string
	Email       string
	CPFCNPJ     string
	Phone       string
	Address     string
	CreditLimit decimal.Decimal
}

// Patch carries optional fields for partial updates. Credit score,
// profile and usage are deliberately absent.
type Patch struct {
	Name        *string          `json:"name"`
	Email       *string          `json:"email"`
	CPFCNPJ     *string          `json:"cpf_cnpj"`
	Phone       *string          `json:"phone"`
	Address     *string          `json:"address"`
	CreditLimit *decimal.Decimal `json:"credit_limit"`
}

// ListFilter narrows customer listings.
type ListFilter struct {
	Search  string
	Blocked *bool
	Limit   int
	Offset  int
}

var (
	ErrNotFound      = fmt.Errorf("customers: %w", shared.ErrNotFound)
	ErrAlreadyExists = fmt.Errorf("customers: duplicate email or document: %w", shared.ErrConflict)
)

// AvailableCredit returns limit minus usage, never negative.
func (c Customer) AvailableCredit() decimal.Decimal {
	avail := c.CreditLimit.Sub(c.CreditUsed)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}
