package credit

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

// Store holds the credit SQL against db.Queryer so sales and
// receivables transactions can run the same reads and writes inside
// their own transaction scope.
type Store struct{}

// CustomerCredit loads the credit snapshot for one active customer.
func (Store) CustomerCredit(ctx context.Context, q db.Queryer, customerID int64) (CustomerCredit, error) {
	var (
		c       CustomerCredit
		created pgtype.Timestamptz
	)
	err := q.QueryRow(ctx, `
		SELECT id, name, credit_limit, credit_used, credit_score, credit_profile,
			is_credit_blocked, created_at
		FROM customers WHERE id = $1 AND deleted_at IS NULL`, customerID,
	).Scan(&c.ID, &c.Name, &c.CreditLimit, &c.CreditUsed, &c.Score, &c.Profile, &c.Blocked, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		return CustomerCredit{}, ErrCustomerNotFound
	}
	if err != nil {
		return CustomerCredit{}, err
	}
	c.CreatedAt = created.Time
	return c, nil
}

// LockCustomer serializes credit mutations for one customer.
func (Store) LockCustomer(ctx context.Context, q db.Queryer, customerID int64) error {
	var id int64
	err := q.QueryRow(ctx,
		`SELECT id FROM customers WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
		customerID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrCustomerNotFound
	}
	return err
}

// OutstandingAmount sums unpaid receivable balances.
func (Store) OutstandingAmount(ctx context.Context, q db.Queryer, customerID int64) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount - paid_amount), 0)
		FROM account_receivables
		WHERE customer_id = $1 AND status NOT IN ('paid', 'canceled')`,
		customerID,
	).Scan(&out)
	return out, err
}

// Overdue counts past-due unpaid receivables and the oldest delay in
// days.
func (Store) Overdue(ctx context.Context, q db.Queryer, customerID int64, now time.Time) (OverdueInfo, error) {
	var info OverdueInfo
	err := q.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(MAX(EXTRACT(DAY FROM $2::timestamptz - due_date))::int, 0)
		FROM account_receivables
		WHERE customer_id = $1
			AND status IN ('open', 'partial', 'overdue')
			AND due_date < $2`,
		customerID, now,
	).Scan(&info.Count, &info.MaxDays)
	return info, err
}

// PaymentEventCount counts payment rows in the credit history.
func (Store) PaymentEventCount(ctx context.Context, q db.Queryer, customerID int64) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM credit_history WHERE customer_id = $1 AND event_type = 'payment'`,
		customerID,
	).Scan(&n)
	return n, err
}

// UpdateCustomerScore persists a recalculated score, profile and
// blocked flag.
func (Store) UpdateCustomerScore(ctx context.Context, q db.Queryer, customerID int64, score int, profile Profile, blocked bool) error {
	tag, err := q.Exec(ctx, `
		UPDATE customers
		SET credit_score = $2, credit_profile = $3, is_credit_blocked = $4, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		customerID, score, profile, blocked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// AdjustCreditUsed applies a signed delta to credit_used, floored at
// zero.
func (Store) AdjustCreditUsed(ctx context.Context, q db.Queryer, customerID int64, delta decimal.Decimal) error {
	tag, err := q.Exec(ctx, `
		UPDATE customers
		SET credit_used = GREATEST(credit_used + $2, 0), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		customerID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// SetCreditLimit overwrites the customer limit.
func (Store) SetCreditLimit(ctx context.Context, q db.Queryer, customerID int64, limit decimal.Decimal) error {
	tag, err := q.Exec(ctx, `
		UPDATE customers SET credit_limit = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		customerID, limit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// SetProfile overwrites the customer profile.
func (Store) SetProfile(ctx context.Context, q db.Queryer, customerID int64, profile Profile) error {
	tag, err := q.Exec(ctx, `
		UPDATE customers SET credit_profile = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		customerID, profile)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// InsertHistory appends one credit history row.
func (Store) InsertHistory(ctx context.Context, q db.Queryer, h History) error {
	at := h.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO credit_history (customer_id, event_type, amount, notes, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		h.CustomerID, h.EventType, h.Amount, h.Notes, at)
	return err
}

// Repository binds Store to a pool and implements the engine ports.
type Repository struct {
	pool  *pgxpool.Pool
	store Store
	clock shared.Clock
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, clock shared.Clock) *Repository {
	return &Repository{pool: pool, clock: clock}
}

func (r *Repository) CustomerCredit(ctx context.Context, customerID int64) (CustomerCredit, error) {
	return r.store.CustomerCredit(ctx, r.pool, customerID)
}

func (r *Repository) OutstandingAmount(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	return r.store.OutstandingAmount(ctx, r.pool, customerID)
}

func (r *Repository) Overdue(ctx context.Context, customerID int64) (OverdueInfo, error) {
	return r.store.Overdue(ctx, r.pool, customerID, r.clock.Now())
}

func (r *Repository) PaymentEventCount(ctx context.Context, customerID int64) (int, error) {
	return r.store.PaymentEventCount(ctx, r.pool, customerID)
}

// TxWriter is the transactional surface for credit mutations.
type TxWriter interface {
	Writer
	LockCustomer(ctx context.Context, customerID int64) error
	AdjustCreditUsed(ctx context.Context, customerID int64, delta decimal.Decimal) error
	SetCreditLimit(ctx context.Context, customerID int64, limit decimal.Decimal) error
	SetProfile(ctx context.Context, customerID int64, profile Profile) error
}

type txWriter struct {
	tx    pgx.Tx
	store Store
	clock shared.Clock
}

func (t *txWriter) CustomerCredit(ctx context.Context, id int64) (CustomerCredit, error) {
	return t.store.CustomerCredit(ctx, t.tx, id)
}

func (t *txWriter) OutstandingAmount(ctx context.Context, id int64) (decimal.Decimal, error) {
	return t.store.OutstandingAmount(ctx, t.tx, id)
}

func (t *txWriter) Overdue(ctx context.Context, id int64) (OverdueInfo, error) {
	return t.store.Overdue(ctx, t.tx, id, t.clock.Now())
}

func (t *txWriter) PaymentEventCount(ctx context.Context, id int64) (int, error) {
	return t.store.PaymentEventCount(ctx, t.tx, id)
}

func (t *txWriter) UpdateCustomerScore(ctx context.Context, id int64, score int, profile Profile, blocked bool) error {
	return t.store.UpdateCustomerScore(ctx, t.tx, id, score, profile, blocked)
}

func (t *txWriter) AdjustCreditUsed(ctx context.Context, id int64, delta decimal.Decimal) error {
	return t.store.AdjustCreditUsed(ctx, t.tx, id, delta)
}

func (t *txWriter) SetCreditLimit(ctx context.Context, id int64, limit decimal.Decimal) error {
	return t.store.SetCreditLimit(ctx, t.tx, id, limit)
}

func (t *txWriter) SetProfile(ctx context.Context, id int64, profile Profile) error {
	return t.store.SetProfile(ctx, t.tx, id, profile)
}

func (t *txWriter) LockCustomer(ctx context.Context, id int64) error {
	return t.store.LockCustomer(ctx, t.tx, id)
}

func (t *txWriter) InsertHistory(ctx context.Context, h History) error {
	return t.store.InsertHistory(ctx, t.tx, h)
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxWriter) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txWriter{tx: tx, store: r.store, clock: r.clock}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (f HistoryFilter) conds(customerID int64) ([]string, []any) {
	conds := []string{"customer_id = $1"}
	args := []any{customerID}
	if f.EventType != "" {
		args = append(args, f.EventType)
		conds = append(conds, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	return conds, args
}

// CountHistory returns how many credit events match the filter.
func (r *Repository) CountHistory(ctx context.Context, customerID int64, filter HistoryFilter) (int, error) {
	conds, args := filter.conds(customerID)
	query := `SELECT COUNT(*) FROM credit_history WHERE ` + strings.Join(conds, " AND ")
	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("credit: count history: %w", err)
	}
	return total, nil
}

// ListHistory returns credit events for one customer, newest first.
func (r *Repository) ListHistory(ctx context.Context, customerID int64, filter HistoryFilter) ([]History, error) {
	conds, args := filter.conds(customerID)
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT id, customer_id, event_type, COALESCE(amount, 0), COALESCE(notes, ''), created_at
		FROM credit_history WHERE %s
		ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		strings.Join(conds, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("credit: list history: %w", err)
	}
	defer rows.Close()

	var out []History
	for rows.Next() {
		var (
			h       History
			created pgtype.Timestamptz
		)
		if err := rows.Scan(&h.ID, &h.CustomerID, &h.EventType, &h.Amount, &h.Notes, &created); err != nil {
			return nil, err
		}
		h.CreatedAt = created.Time
		out = append(out, h)
	}
	return out, rows.Err()
}

// ActiveCustomerIDs returns the ids of all active customers.
func (r *Repository) ActiveCustomerIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM customers WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RiskRows returns the per-customer aggregates the risk report ranks.
func (r *Repository) RiskRows(ctx context.Context) ([]RiskCustomer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.credit_score, c.credit_profile, c.credit_limit,
			COALESCE(SUM(ar.amount - ar.paid_amount)
				FILTER (WHERE ar.status NOT IN ('paid', 'canceled')), 0) AS outstanding,
			COALESCE(MAX(EXTRACT(DAY FROM NOW() - ar.due_date))
				FILTER (WHERE ar.status IN ('open', 'partial', 'overdue') AND ar.due_date < NOW()), 0)::int AS max_days
		FROM customers c
		LEFT JOIN account_receivables ar ON ar.customer_id = c.id
		WHERE c.deleted_at IS NULL
		GROUP BY c.id, c.name, c.credit_score, c.credit_profile, c.credit_limit`)
	if err != nil {
		return nil, fmt.Errorf("credit: risk rows: %w", err)
	}
	defer rows.Close()

	var out []RiskCustomer
	for rows.Next() {
		var (
			rc    RiskCustomer
			limit decimal.Decimal
		)
		if err := rows.Scan(&rc.CustomerID, &rc.Name, &rc.Score, &rc.Profile,
			&limit, &rc.Outstanding, &rc.MaxDaysOverdue); err != nil {
			return nil, err
		}
		if limit.IsPositive() {
			pct, _ := rc.Outstanding.Div(limit).Mul(decimal.NewFromInt(100)).Float64()
			rc.UsagePercent = pct
		}
		rc.RiskLevel = LevelForScore(rc.Score)
		out = append(out, rc)
	}
	return out, rows.Err()
}
