package stock

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists stock movements in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	ledger Ledger
}

// NewRepository constructs Repository around an already configured
// ledger, the same value the sales and procurement repositories share.
func NewRepository(pool *pgxpool.Pool, ledger Ledger) *Repository {
	return &Repository{pool: pool, ledger: ledger}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	LockProduct(ctx context.Context, productID int64) error
	OnHand(ctx context.Context, productID int64) (float64, error)
	Apply(ctx context.Context, input MovementInput) (Movement, error)
}

type txRepo struct {
	tx     pgx.Tx
	ledger Ledger
}

func (t *txRepo) LockProduct(ctx context.Context, productID int64) error {
	return t.ledger.LockProduct(ctx, t.tx, productID)
}

func (t *txRepo) OnHand(ctx context.Context, productID int64) (float64, error) {
	return t.ledger.OnHand(ctx, t.tx, productID)
}

func (t *txRepo) Apply(ctx context.Context, input MovementInput) (Movement, error) {
	return t.ledger.Apply(ctx, t.tx, input)
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txRepo{tx: tx, ledger: r.ledger}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CurrentStock reads on-hand quantity outside a transaction.
func (r *Repository) CurrentStock(ctx context.Context, productID int64) (float64, error) {
	return r.ledger.OnHand(ctx, r.pool, productID)
}

// ListMovements returns ledger entries matching the filter, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter ListFilter) ([]Movement, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.ProductID != 0 {
		add("product_id = $%d", filter.ProductID)
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at < $%d", filter.To)
	}
	query := `SELECT id, product_id, type, quantity, COALESCE(unit_cost, 0), reason,
		COALESCE(ref_type, ''), COALESCE(ref_id, 0), created_by, created_at
		FROM stock_movements`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stock: list movements: %w", err)
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var (
			mv      Movement
			created pgtype.Timestamptz
		)
		if err := rows.Scan(&mv.ID, &mv.ProductID, &mv.Type, &mv.Quantity, &mv.UnitCost,
			&mv.Reason, &mv.RefType, &mv.RefID, &mv.CreatedBy, &created); err != nil {
			return nil, err
		}
		mv.CreatedAt = created.Time
		out = append(out, mv)
	}
	return out, rows.Err()
}

// Levels returns on-hand quantity per active product. LowOnly keeps
// products at or below their minimum stock.
func (r *Repository) Levels(ctx context.Context, lowOnly bool) ([]Level, error) {
	query := `
		SELECT p.id, p.sku, p.name, p.min_stock,
			COALESCE(SUM(CASE m.type WHEN 'OUT' THEN -m.quantity ELSE m.quantity END), 0) AS on_hand
		FROM products p
		LEFT JOIN stock_movements m ON m.product_id = p.id
		WHERE p.deleted_at IS NULL
		GROUP BY p.id, p.sku, p.name, p.min_stock`
	if lowOnly {
		query += `
		HAVING COALESCE(SUM(CASE m.type WHEN 'OUT' THEN -m.quantity ELSE m.quantity END), 0) <= p.min_stock`
	}
	query += `
		ORDER BY p.sku`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("stock: levels: %w", err)
	}
	defer rows.Close()

	var out []Level
	for rows.Next() {
		var lv Level
		if err := rows.Scan(&lv.ProductID, &lv.SKU, &lv.Name, &lv.MinStock, &lv.OnHand); err != nil {
			return nil, err
		}
		out = append(out, lv)
	}
	return out, rows.Err()
}
