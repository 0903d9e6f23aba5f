package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/credit"
	"github.com/vela-pos/vela/internal/receivables"
	"github.com/vela-pos/vela/internal/shared"
	"github.com/vela-pos/vela/internal/stock"
)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	ledger stock.Ledger
	credit credit.Store
	clock  shared.Clock
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, ledger stock.Ledger, creditStore credit.Store, clock shared.Clock) *Repository {
	return &Repository{pool: pool, ledger: ledger, credit: creditStore, clock: clock}
}

// TxRepository is the transactional surface for checkout and
// cancellation. It embeds the credit writer and the stock ledger so
// sale, stock, receivable and customer mutations share one
// transaction.
type TxRepository interface {
	credit.Writer
	LockCustomer(ctx context.Context, customerID int64) error
	AdjustCreditUsed(ctx context.Context, customerID int64, delta decimal.Decimal) error

	LockProduct(ctx context.Context, productID int64) error
	ApplyMovement(ctx context.Context, input stock.MovementInput) (stock.Movement, error)

	GetSaleForUpdate(ctx context.Context, saleID int64) (Sale, error)
	GetItems(ctx context.Context, saleID int64) ([]Item, error)
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	SumPayments(ctx context.Context, saleID int64) (decimal.Decimal, error)
	SetStatus(ctx context.Context, saleID int64, status Status) error
	InsertReceivable(ctx context.Context, r receivables.Receivable) (int64, error)
	CancelReceivables(ctx context.Context, saleID int64) (decimal.Decimal, error)
	InsertCashMovement(ctx context.Context, sessionID int64, amount decimal.Decimal, saleID, actorID int64) error
}

type txRepo struct {
	tx     pgx.Tx
	ledger stock.Ledger
	credit credit.Store
	clock  shared.Clock
}

func (t *txRepo) CustomerCredit(ctx context.Context, id int64) (credit.CustomerCredit, error) {
	return t.credit.CustomerCredit(ctx, t.tx, id)
}

func (t *txRepo) OutstandingAmount(ctx context.Context, id int64) (decimal.Decimal, error) {
	return t.credit.OutstandingAmount(ctx, t.tx, id)
}

func (t *txRepo) Overdue(ctx context.Context, id int64) (credit.OverdueInfo, error) {
	return t.credit.Overdue(ctx, t.tx, id, t.clock.Now())
}

func (t *txRepo) PaymentEventCount(ctx context.Context, id int64) (int, error) {
	return t.credit.PaymentEventCount(ctx, t.tx, id)
}

func (t *txRepo) UpdateCustomerScore(ctx context.Context, id int64, score int, profile credit.Profile, blocked bool) error {
	return t.credit.UpdateCustomerScore(ctx, t.tx, id, score, profile, blocked)
}

func (t *txRepo) InsertHistory(ctx context.Context, h credit.History) error {
	return t.credit.InsertHistory(ctx, t.tx, h)
}

func (t *txRepo) LockCustomer(ctx context.Context, id int64) error {
	return t.credit.LockCustomer(ctx, t.tx, id)
}

func (t *txRepo) AdjustCreditUsed(ctx context.Context, id int64, delta decimal.Decimal) error {
	return t.credit.AdjustCreditUsed(ctx, t.tx, id, delta)
}

func (t *txRepo) LockProduct(ctx context.Context, productID int64) error {
	return t.ledger.LockProduct(ctx, t.tx, productID)
}

func (t *txRepo) ApplyMovement(ctx context.Context, input stock.MovementInput) (stock.Movement, error) {
	return t.ledger.Apply(ctx, t.tx, input)
}

const saleColumns = `id, customer_id, status, total, discount_total, created_by, created_at, updated_at`

func scanSale(row pgx.Row) (Sale, error) {
	var (
		s        Sale
		customer pgtype.Int8
		created  pgtype.Timestamptz
		updated  pgtype.Timestamptz
	)
	err := row.Scan(&s.ID, &customer, &s.Status, &s.Total, &s.DiscountTotal,
		&s.CreatedBy, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrNotFound
	}
	if err != nil {
		return Sale{}, err
	}
	if customer.Valid {
		id := customer.Int64
		s.CustomerID = &id
	}
	s.CreatedAt = created.Time
	s.UpdatedAt = updated.Time
	return s, nil
}

func (t *txRepo) GetSaleForUpdate(ctx context.Context, saleID int64) (Sale, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, saleID)
	return scanSale(row)
}

func getItems(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, saleID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT id, sale_id, product_id, quantity, unit_price, subtotal
		FROM sale_items WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (t *txRepo) GetItems(ctx context.Context, saleID int64) ([]Item, error) {
	return getItems(ctx, t.tx, saleID)
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.clock.Now()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO sale_payments (sale_id, mode, amount, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		p.SaleID, p.Mode, p.Amount, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (t *txRepo) SumPayments(ctx context.Context, saleID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM sale_payments WHERE sale_id = $1`, saleID,
	).Scan(&sum)
	return sum, err
}

func (t *txRepo) SetStatus(ctx context.Context, saleID int64, status Status) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE sales SET status = $2, updated_at = NOW() WHERE id = $1`, saleID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertReceivable(ctx context.Context, r receivables.Receivable) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO account_receivables
			(customer_id, sale_id, installment_number, due_date, amount, paid_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
		RETURNING id`,
		r.CustomerID, r.SaleID, r.InstallmentNumber, r.DueDate, r.Amount, r.Status, t.clock.Now(),
	).Scan(&id)
	return id, err
}

// CancelReceivables marks the sale's settleable receivables canceled
// and returns the outstanding amount they still carried.
func (t *txRepo) CancelReceivables(ctx context.Context, saleID int64) (decimal.Decimal, error) {
	rows, err := t.tx.Query(ctx, `
		UPDATE account_receivables
		SET status = 'canceled'
		WHERE sale_id = $1 AND status NOT IN ('paid', 'canceled')
		RETURNING amount - paid_amount`, saleID)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	outstanding := decimal.Zero
	for rows.Next() {
		var remaining decimal.Decimal
		if err := rows.Scan(&remaining); err != nil {
			return decimal.Zero, err
		}
		outstanding = outstanding.Add(remaining)
	}
	return outstanding, rows.Err()
}

func (t *txRepo) InsertCashMovement(ctx context.Context, sessionID int64, amount decimal.Decimal, saleID, actorID int64) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO cash_movements (cash_session_id, movement_type, amount, reason, ref_sale_id, created_by, created_at)
		VALUES ($1, 'sale', $2, NULL, $3, $4, $5)`,
		sessionID, amount, saleID, actorID, t.clock.Now())
	return err
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txRepo{tx: tx, ledger: r.ledger, credit: r.credit, clock: r.clock}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Create inserts an open sale.
func (r *Repository) Create(ctx context.Context, customerID *int64, createdBy int64) (Sale, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO sales (customer_id, status, total, discount_total, created_by, created_at, updated_at)
		VALUES ($1, 'open', 0, 0, $2, NOW(), NOW())
		RETURNING `+saleColumns,
		customerID, createdBy)
	return scanSale(row)
}

// Get returns one sale with items and payments.
func (r *Repository) Get(ctx context.Context, saleID int64) (Sale, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = $1`, saleID)
	sale, err := scanSale(row)
	if err != nil {
		return Sale{}, err
	}
	if sale.Items, err = getItems(ctx, r.pool, saleID); err != nil {
		return Sale{}, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, sale_id, mode, amount, created_at
		FROM sale_payments WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return Sale{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p       Payment
			created pgtype.Timestamptz
		)
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Mode, &p.Amount, &created); err != nil {
			return Sale{}, err
		}
		p.CreatedAt = created.Time
		sale.Payments = append(sale.Payments, p)
	}
	return sale, rows.Err()
}

func (f ListFilter) conds() ([]string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.CustomerID != 0 {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}
	return conds, args
}

// Count returns how many sales match the filter, for pagination.
func (r *Repository) Count(ctx context.Context, filter ListFilter) (int, error) {
	conds, args := filter.conds()
	query := `SELECT COUNT(*) FROM sales`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sales: count: %w", err)
	}
	return total, nil
}

// List returns sales matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Sale, error) {
	conds, args := filter.conds()
	query := `SELECT ` + saleColumns + ` FROM sales`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sales: list: %w", err)
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

// AddItem appends a line to an open sale and bumps the total. The
// open check and the mutation run in one transaction.
func (r *Repository) AddItem(ctx context.Context, saleID, productID int64, qty float64) (Item, error) {
	var item Item
	err := r.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != StatusOpen {
			return ErrNotOpen
		}

		inner, ok := tx.(*txRepo)
		if !ok {
			return errors.New("sales: unexpected tx repository")
		}
		if err := r.ledger.LockProduct(ctx, inner.tx, productID); err != nil {
			return err
		}
		onHand, err := r.ledger.OnHand(ctx, inner.tx, productID)
		if err != nil {
			return err
		}
		reserved, err := reservedQuantity(ctx, inner.tx, saleID, productID)
		if err != nil {
			return err
		}
		if reserved+qty > onHand {
			return stock.ErrInsufficientStock
		}

		var unitPrice decimal.Decimal
		err = inner.tx.QueryRow(ctx,
			`SELECT sell_price FROM products WHERE id = $1 AND deleted_at IS NULL`, productID,
		).Scan(&unitPrice)
		if errors.Is(err, pgx.ErrNoRows) {
			return stock.ErrProductNotFound
		}
		if err != nil {
			return err
		}

		subtotal := unitPrice.Mul(decimal.NewFromFloat(qty)).Round(2)
		err = inner.tx.QueryRow(ctx, `
			INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			saleID, productID, qty, unitPrice, subtotal,
		).Scan(&item.ID)
		if err != nil {
			return err
		}
		item.SaleID = saleID
		item.ProductID = productID
		item.Quantity = qty
		item.UnitPrice = unitPrice
		item.Subtotal = subtotal

		_, err = inner.tx.Exec(ctx,
			`UPDATE sales SET total = total + $2, updated_at = NOW() WHERE id = $1`,
			saleID, subtotal)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// RemoveItem deletes a line from an open sale and reduces the total.
func (r *Repository) RemoveItem(ctx context.Context, saleID, itemID int64) error {
	return r.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != StatusOpen {
			return ErrNotOpen
		}

		inner := tx.(*txRepo)
		var subtotal decimal.Decimal
		err = inner.tx.QueryRow(ctx, `
			DELETE FROM sale_items WHERE id = $1 AND sale_id = $2
			RETURNING subtotal`, itemID, saleID,
		).Scan(&subtotal)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		_, err = inner.tx.Exec(ctx,
			`UPDATE sales SET total = total - $2, updated_at = NOW() WHERE id = $1`,
			saleID, subtotal)
		return err
	})
}

// SetDiscount updates the discount on an open sale.
func (r *Repository) SetDiscount(ctx context.Context, saleID int64, discount decimal.Decimal) error {
	return r.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != StatusOpen {
			return ErrNotOpen
		}
		inner := tx.(*txRepo)
		_, err = inner.tx.Exec(ctx,
			`UPDATE sales SET discount_total = $2, updated_at = NOW() WHERE id = $1`,
			saleID, discount)
		return err
	})
}

func reservedQuantity(ctx context.Context, q pgx.Tx, saleID, productID int64) (float64, error) {
	var reserved float64
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM sale_items
		WHERE sale_id = $1 AND product_id = $2`, saleID, productID,
	).Scan(&reserved)
	return reserved, err
}
