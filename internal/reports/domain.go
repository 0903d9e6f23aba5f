package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dashboard is the operational snapshot shown on the back office home.
type Dashboard struct {
	Date                 time.Time       `json:"date"`
	SalesCount           int             `json:"sales_count"`
	SalesRevenue         decimal.Decimal `json:"sales_revenue"`
	OpenCashSessions     int             `json:"open_cash_sessions"`
	LowStockProducts     int             `json:"low_stock_products"`
	ReceivablesOpen      decimal.Decimal `json:"receivables_open"`
	ReceivablesOverdue   decimal.Decimal `json:"receivables_overdue"`
	PayablesOpen         decimal.Decimal `json:"payables_open"`
	BlockedCustomers     int             `json:"blocked_customers"`
	GeneratedAt          time.Time       `json:"generated_at"`
}

// DailySales is revenue aggregated per calendar day.
type DailySales struct {
	Day     time.Time       `json:"day"`
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

// CashDaily aggregates cash register activity for one calendar day.
type CashDaily struct {
	Day            time.Time       `json:"day"`
	SessionsOpened int             `json:"sessions_opened"`
	SessionsClosed int             `json:"sessions_closed"`
	Sales          decimal.Decimal `json:"sales"`
	Supplies       decimal.Decimal `json:"supplies"`
	Withdrawals    decimal.Decimal `json:"withdrawals"`
	Refunds        decimal.Decimal `json:"refunds"`
	Adjustments    decimal.Decimal `json:"adjustments"`
	NetMovement    decimal.Decimal `json:"net_movement"`
}

// TopProduct is one row of the best seller ranking.
type TopProduct struct {
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  float64         `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}
