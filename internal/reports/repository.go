package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the aggregate queries behind the reports.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Dashboard collects the operational snapshot for one day.
func (r *Repository) Dashboard(ctx context.Context, day time.Time) (Dashboard, error) {
	d := Dashboard{Date: day}
	dayStart := day.Truncate(24 * time.Hour)
	dayEnd := dayStart.AddDate(0, 0, 1)

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total - discount_total), 0)
		FROM sales
		WHERE status IN ('paid', 'pending') AND created_at >= $1 AND created_at < $2`,
		dayStart, dayEnd,
	).Scan(&d.SalesCount, &d.SalesRevenue)
	if err != nil {
		return Dashboard{}, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM cash_sessions WHERE status = 'open'`,
	).Scan(&d.OpenCashSessions)
	if err != nil {
		return Dashboard{}, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT p.id
			FROM products p
			LEFT JOIN stock_movements m ON m.product_id = p.id
			WHERE p.deleted_at IS NULL
			GROUP BY p.id, p.min_stock
			HAVING COALESCE(SUM(CASE m.type WHEN 'OUT' THEN -m.quantity ELSE m.quantity END), 0) <= p.min_stock
		) low`,
	).Scan(&d.LowStockProducts)
	if err != nil {
		return Dashboard{}, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount - paid_amount) FILTER (WHERE status IN ('open', 'partial')), 0),
			COALESCE(SUM(amount - paid_amount) FILTER (WHERE status = 'overdue'), 0)
		FROM account_receivables`,
	).Scan(&d.ReceivablesOpen, &d.ReceivablesOverdue)
	if err != nil {
		return Dashboard{}, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount - paid_amount), 0)
		FROM account_payables WHERE status IN ('open', 'partial', 'overdue')`,
	).Scan(&d.PayablesOpen)
	if err != nil {
		return Dashboard{}, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM customers WHERE credit_blocked AND deleted_at IS NULL`,
	).Scan(&d.BlockedCustomers)
	if err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// DailySales aggregates settled revenue per day over a range.
func (r *Repository) DailySales(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date_trunc('day', created_at) AS day, COUNT(*), COALESCE(SUM(total - discount_total), 0)
		FROM sales
		WHERE status IN ('paid', 'pending') AND created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailySales
	for rows.Next() {
		var d DailySales
		if err := rows.Scan(&d.Day, &d.Count, &d.Revenue); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CashDaily aggregates cash register activity for one day.
func (r *Repository) CashDaily(ctx context.Context, day time.Time) (CashDaily, error) {
	d := CashDaily{Day: day.Truncate(24 * time.Hour)}
	dayEnd := d.Day.AddDate(0, 0, 1)

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE opened_at >= $1 AND opened_at < $2),
			COUNT(*) FILTER (WHERE closed_at >= $1 AND closed_at < $2)
		FROM cash_sessions`,
		d.Day, dayEnd,
	).Scan(&d.SessionsOpened, &d.SessionsClosed)
	if err != nil {
		return CashDaily{}, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE movement_type = 'sale'), 0),
			COALESCE(SUM(amount) FILTER (WHERE movement_type = 'supply'), 0),
			COALESCE(SUM(amount) FILTER (WHERE movement_type = 'withdrawal'), 0),
			COALESCE(SUM(amount) FILTER (WHERE movement_type = 'refund'), 0),
			COALESCE(SUM(amount) FILTER (WHERE movement_type = 'adjustment'), 0)
		FROM cash_movements
		WHERE created_at >= $1 AND created_at < $2`,
		d.Day, dayEnd,
	).Scan(&d.Sales, &d.Supplies, &d.Withdrawals, &d.Refunds, &d.Adjustments)
	if err != nil {
		return CashDaily{}, err
	}

	d.NetMovement = d.Sales.Add(d.Supplies).Add(d.Adjustments).Sub(d.Withdrawals).Sub(d.Refunds)
	return d, nil
}

// TopProducts ranks products by revenue over a range.
func (r *Repository) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.product_id, p.sku, p.name, SUM(i.quantity), COALESCE(SUM(i.subtotal), 0)
		FROM sale_items i
		JOIN sales s ON s.id = i.sale_id
		JOIN products p ON p.id = i.product_id
		WHERE s.status IN ('paid', 'pending') AND s.created_at >= $1 AND s.created_at < $2
		GROUP BY i.product_id, p.sku, p.name
		ORDER BY SUM(i.subtotal) DESC
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopProduct
	for rows.Next() {
		var tp TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.SKU, &tp.Name, &tp.Quantity, &tp.Revenue); err != nil {
			return nil, err
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}
