package receivables

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

	"github.com/vela-pos/vela/internal/credit"
	"github.com/vela-pos/vela/internal/shared"
)

// Repository persists receivables in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	credit credit.Store
	clock  shared.Clock
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, clock shared.Clock) *Repository {
	return &Repository{pool: pool, clock: clock}
}

// TxRepository exposes the transactional surface for payment
// settlement. It embeds the credit writer so the settlement and the
// score recalc share one transaction.
type TxRepository interface {
	credit.Writer
	LockCustomer(ctx context.Context, customerID int64) error
	AdjustCreditUsed(ctx context.Context, customerID int64, delta decimal.Decimal) error
	GetForUpdate(ctx context.Context, id int64) (Receivable, error)
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	ApplyPayment(ctx context.Context, id int64, paidAmount decimal.Decimal, status Status, paidAt *time.Time) error
}

type txRepo struct {
	tx     pgx.Tx
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

const receivableColumns = `id, customer_id, sale_id, installment_number, due_date,
	amount, paid_amount, status, paid_at, created_at`

func scanReceivable(row pgx.Row) (Receivable, error) {
	var (
		r       Receivable
		due     pgtype.Timestamptz
		paidAt  pgtype.Timestamptz
		created pgtype.Timestamptz
	)
	err := row.Scan(&r.ID, &r.CustomerID, &r.SaleID, &r.InstallmentNumber, &due,
		&r.Amount, &r.PaidAmount, &r.Status, &paidAt, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receivable{}, ErrNotFound
	}
	if err != nil {
		return Receivable{}, err
	}
	r.DueDate = due.Time
	r.CreatedAt = created.Time
	if paidAt.Valid {
		t := paidAt.Time
		r.PaidAt = &t
	}
	return r, nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Receivable, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+receivableColumns+` FROM account_receivables WHERE id = $1 FOR UPDATE`, id)
	return scanReceivable(row)
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.clock.Now()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO receivable_payments (receivable_id, amount, paid_by, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		p.ReceivableID, p.Amount, p.PaidBy, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (t *txRepo) ApplyPayment(ctx context.Context, id int64, paidAmount decimal.Decimal, status Status, paidAt *time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE account_receivables
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

	if err := fn(ctx, &txRepo{tx: tx, credit: r.credit, clock: r.clock}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get returns one receivable.
func (r *Repository) Get(ctx context.Context, id int64) (Receivable, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+receivableColumns+` FROM account_receivables WHERE id = $1`, id)
	return scanReceivable(row)
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
	if f.SaleID != 0 {
		add("sale_id = $%d", f.SaleID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if !f.DueBefore.IsZero() {
		add("due_date < $%d", f.DueBefore)
	}
	return conds, args
}

// Count returns how many receivables match the filter, for pagination.
func (r *Repository) Count(ctx context.Context, filter ListFilter) (int, error) {
	conds, args := filter.conds()
	query := `SELECT COUNT(*) FROM account_receivables`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("receivables: count: %w", err)
	}
	return total, nil
}

// List returns receivables matching the filter, oldest due first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Receivable, error) {
	conds, args := filter.conds()
	query := `SELECT ` + receivableColumns + ` FROM account_receivables`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY due_date, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("receivables: list: %w", err)
	}
	defer rows.Close()

	var out []Receivable
	for rows.Next() {
		rec, err := scanReceivable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListPayments returns the payments applied to one receivable.
func (r *Repository) ListPayments(ctx context.Context, receivableID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, receivable_id, amount, paid_by, created_at
		FROM receivable_payments WHERE receivable_id = $1 ORDER BY id`, receivableID)
	if err != nil {
		return nil, fmt.Errorf("receivables: list payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var (
			p       Payment
			created pgtype.Timestamptz
		)
		if err := rows.Scan(&p.ID, &p.ReceivableID, &p.Amount, &p.PaidBy, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = created.Time
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkOverdue flips past-due open receivables to overdue and returns
// the distinct customers touched.
func (r *Repository) MarkOverdue(ctx context.Context, now time.Time) (SweepResult, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE account_receivables
		SET status = 'overdue'
		WHERE status = 'open' AND due_date < $1
		RETURNING customer_id`, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("receivables: mark overdue: %w", err)
	}
	defer rows.Close()

	var result SweepResult
	seen := map[int64]bool{}
	for rows.Next() {
		var customerID int64
		if err := rows.Scan(&customerID); err != nil {
			return SweepResult{}, err
		}
		result.MarkedOverdue++
		if !seen[customerID] {
			seen[customerID] = true
			result.AffectedCustomers = append(result.AffectedCustomers, customerID)
		}
	}
	return result, rows.Err()
}
