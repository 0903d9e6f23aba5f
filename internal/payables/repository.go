package payables

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/platform/db"
	"github.com/vela-pos/vela/internal/shared"
)

// Repository persists payables in PostgreSQL.
type Repository struct {
	pool  *pgxpool.Pool
	clock shared.Clock
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, clock shared.Clock) *Repository {
	return &Repository{pool: pool, clock: clock}
}

// TxRepository is the transactional surface for settlement.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Payable, error)
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	ApplyPayment(ctx context.Context, id int64, paidAmount decimal.Decimal, status Status, paidAt *time.Time) error
}

type txRepo struct {
	tx    pgx.Tx
	clock shared.Clock
}

const payableColumns = `id, supplier_id, purchase_order_id, due_date, amount, paid_amount, status, paid_at, notes, created_at`

func scanPayable(row pgx.Row) (Payable, error) {
	var (
		p       Payable
		po      pgtype.Int8
		due     pgtype.Timestamptz
		paidAt  pgtype.Timestamptz
		notes   pgtype.Text
		created pgtype.Timestamptz
	)
	err := row.Scan(&p.ID, &p.SupplierID, &po, &due, &p.Amount, &p.PaidAmount,
		&p.Status, &paidAt, &notes, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payable{}, ErrNotFound
	}
	if err != nil {
		return Payable{}, err
	}
	if po.Valid {
		id := po.Int64
		p.PurchaseOrderID = &id
	}
	p.DueDate = due.Time
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	p.Notes = notes.String
	p.CreatedAt = created.Time
	return p, nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Payable, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+payableColumns+` FROM account_payables WHERE id = $1 FOR UPDATE`, id)
	return scanPayable(row)
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.clock.Now()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO payable_payments (payable_id, amount, paid_by, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		p.PayableID, p.Amount, p.PaidBy, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (t *txRepo) ApplyPayment(ctx context.Context, id int64, paidAmount decimal.Decimal, status Status, paidAt *time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE account_payables
		SET paid_amount = $2, status = $3, paid_at = $4
		WHERE id = $1`,
		id, paidAmount, status, paidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txRepo{tx: tx, clock: r.clock}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Create inserts an open payable. Used directly and by the purchase
// receipt transaction via CreateIn.
func (r *Repository) Create(ctx context.Context, input CreateInput) (Payable, error) {
	return CreateIn(ctx, r.pool, input, r.clock.Now())
}

// CreateIn inserts a payable on any queryer so purchase receipts can
// create one inside their own transaction.
func CreateIn(ctx context.Context, q db.Queryer, input CreateInput, now time.Time) (Payable, error) {
	row := q.QueryRow(ctx, `
		INSERT INTO account_payables
			(supplier_id, purchase_order_id, due_date, amount, paid_amount, status, notes, created_at)
		VALUES ($1, $2, $3, $4, 0, 'open', NULLIF($5, ''), $6)
		RETURNING `+payableColumns,
		input.SupplierID, input.PurchaseOrderID, input.DueDate, input.Amount, input.Notes, now)
	return scanPayable(row)
}

// Get returns one payable.
func (r *Repository) Get(ctx context.Context, id int64) (Payable, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+payableColumns+` FROM account_payables WHERE id = $1`, id)
	return scanPayable(row)
}

// List returns payables matching the filter, earliest due first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Payable, error) {
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
	if !filter.DueBefore.IsZero() {
		add("due_date < $%d", filter.DueBefore)
	}
	query := `SELECT ` + payableColumns + ` FROM account_payables`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY due_date ASC, id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("payables: list: %w", err)
	}
	defer rows.Close()

	var out []Payable
	for rows.Next() {
		p, err := scanPayable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPayments returns the payment trail for one payable.
func (r *Repository) ListPayments(ctx context.Context, payableID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, payable_id, amount, paid_by, created_at
		FROM payable_payments WHERE payable_id = $1 ORDER BY id`, payableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var (
			p       Payment
			created pgtype.Timestamptz
		)
		if err := rows.Scan(&p.ID, &p.PayableID, &p.Amount, &p.PaidBy, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = created.Time
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkOverdue flips past-due open payables to overdue.
func (r *Repository) MarkOverdue(ctx context.Context, now time.Time) (SweepResult, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE account_payables
		SET status = 'overdue'
		WHERE status = 'open' AND due_date < $1`, now)
	if err != nil {
		return SweepResult{}, err
	}
	return SweepResult{MarkedOverdue: int(tag.RowsAffected())}, nil
}
