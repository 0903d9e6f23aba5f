package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/payables"
	"github.com/vela-pos/vela/internal/shared"
	"github.com/vela-pos/vela/internal/stock"
)

// Repository persists purchase orders in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	ledger stock.Ledger
	clock  shared.Clock
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, ledger stock.Ledger, clock shared.Clock) *Repository {
	return &Repository{pool: pool, ledger: ledger, clock: clock}
}

// TxRepository is the transactional surface for the receive flow.
// Stock and payable mutations share the order's transaction.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, orderID int64) (Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error)
	AddItemReceived(ctx context.Context, itemID int64, qty float64) error
	SetOrderStatus(ctx context.Context, orderID int64, status Status) error

	LockProduct(ctx context.Context, productID int64) error
	ApplyMovement(ctx context.Context, input stock.MovementInput) (stock.Movement, error)

	CreatePayable(ctx context.Context, input payables.CreateInput) (payables.Payable, error)
}

type txRepo struct {
	tx     pgx.Tx
	ledger stock.Ledger
	clock  shared.Clock
}

const orderColumns = `id, supplier_id, status, total, notes, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o       Order
		notes   pgtype.Text
		created pgtype.Timestamptz
		updated pgtype.Timestamptz
	)
	err := row.Scan(&o.ID, &o.SupplierID, &o.Status, &o.Total, &notes,
		&o.CreatedBy, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Notes = notes.String
	o.CreatedAt = created.Time
	o.UpdatedAt = updated.Time
	return o, nil
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, orderID int64) (Order, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, orderID)
	return scanOrder(row)
}

func getOrderItems(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, orderID int64) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, received, unit_cost
		FROM purchase_order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Received, &it.UnitCost); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (t *txRepo) GetOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	return getOrderItems(ctx, t.tx, orderID)
}

func (t *txRepo) AddItemReceived(ctx context.Context, itemID int64, qty float64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE purchase_order_items SET received = received + $2 WHERE id = $1`,
		itemID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SetOrderStatus(ctx context.Context, orderID int64, status Status) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE purchase_orders SET status = $2, updated_at = NOW() WHERE id = $1`,
		orderID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) LockProduct(ctx context.Context, productID int64) error {
	return t.ledger.LockProduct(ctx, t.tx, productID)
}

func (t *txRepo) ApplyMovement(ctx context.Context, input stock.MovementInput) (stock.Movement, error) {
	return t.ledger.Apply(ctx, t.tx, input)
}

func (t *txRepo) CreatePayable(ctx context.Context, input payables.CreateInput) (payables.Payable, error) {
	return payables.CreateIn(ctx, t.tx, input, t.clock.Now())
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txRepo{tx: tx, ledger: r.ledger, clock: r.clock}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Create inserts an ordered purchase order with its items.
func (r *Repository) Create(ctx context.Context, input OrderInput) (Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx)

	total := decimal.Zero
	for _, it := range input.Items {
		total = total.Add(it.UnitCost.Mul(decimal.NewFromFloat(it.Quantity)))
	}
	now := r.clock.Now()
	row := tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (supplier_id, status, total, notes, created_by, created_at, updated_at)
		VALUES ($1, 'ordered', $2, NULLIF($3, ''), $4, $5, $5)
		RETURNING `+orderColumns,
		input.SupplierID, total.Round(2), input.Notes, input.CreatedBy, now)
	order, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}

	for _, it := range input.Items {
		var item OrderItem
		err := tx.QueryRow(ctx, `
			INSERT INTO purchase_order_items (order_id, product_id, quantity, received, unit_cost)
			VALUES ($1, $2, $3, 0, $4)
			RETURNING id, order_id, product_id, quantity, received, unit_cost`,
			order.ID, it.ProductID, it.Quantity, it.UnitCost,
		).Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Received, &item.UnitCost)
		if err != nil {
			return Order{}, err
		}
		order.Items = append(order.Items, item)
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return order, nil
}

// Get returns one order with its items.
func (r *Repository) Get(ctx context.Context, orderID int64) (Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	order.Items, err = getOrderItems(ctx, r.pool, orderID)
	return order, err
}

// List returns orders matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.SupplierID != 0 {
		add("supplier_id = $%d", filter.SupplierID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	query := `SELECT ` + orderColumns + ` FROM purchase_orders`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("procurement: list: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}
