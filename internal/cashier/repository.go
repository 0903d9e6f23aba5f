package cashier

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/shared"
)

// Repository persists cash sessions in PostgreSQL.
type Repository struct {
	pool  *pgxpool.Pool
	clock shared.Clock
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, clock shared.Clock) *Repository {
	return &Repository{pool: pool, clock: clock}
}

// TxRepository is the transactional surface for session mutations.
type TxRepository interface {
	GetSessionForUpdate(ctx context.Context, sessionID int64) (Session, error)
	HasOpenSession(ctx context.Context, registerID, userID int64) (bool, error)
	InsertSession(ctx context.Context, registerID, openedBy int64, opening decimal.Decimal) (Session, error)
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
	SessionTotals(ctx context.Context, sessionID int64) (Totals, error)
	CloseSession(ctx context.Context, sessionID int64, closing, expected, difference decimal.Decimal, consistent bool, notes string) (Session, error)
}

type txRepo struct {
	tx    pgx.Tx
	clock shared.Clock
}

const sessionColumns = `id, register_id, opened_by, opening_amount, status, opened_at,
	closed_at, closing_amount, expected_amount, difference, is_consistent, notes`

func scanSession(row pgx.Row) (Session, error) {
	var (
		s          Session
		openedAt   pgtype.Timestamptz
		closedAt   pgtype.Timestamptz
		closing    decimal.NullDecimal
		expected   decimal.NullDecimal
		difference decimal.NullDecimal
		consistent pgtype.Bool
		notes      pgtype.Text
	)
	err := row.Scan(&s.ID, &s.RegisterID, &s.OpenedBy, &s.OpeningAmount, &s.Status,
		&openedAt, &closedAt, &closing, &expected, &difference, &consistent, &notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	s.OpenedAt = openedAt.Time
	if closedAt.Valid {
		t := closedAt.Time
		s.ClosedAt = &t
	}
	if closing.Valid {
		s.ClosingAmount = &closing.Decimal
	}
	if expected.Valid {
		s.ExpectedAmount = &expected.Decimal
	}
	if difference.Valid {
		s.Difference = &difference.Decimal
	}
	if consistent.Valid {
		b := consistent.Bool
		s.IsConsistent = &b
	}
	s.Notes = notes.String
	return s, nil
}

func (t *txRepo) GetSessionForUpdate(ctx context.Context, sessionID int64) (Session, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM cash_sessions WHERE id = $1 FOR UPDATE`, sessionID)
	return scanSession(row)
}

func (t *txRepo) HasOpenSession(ctx context.Context, registerID, userID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM cash_sessions
			WHERE status = 'open' AND (register_id = $1 OR opened_by = $2)
		)`, registerID, userID).Scan(&exists)
	return exists, err
}

func (t *txRepo) InsertSession(ctx context.Context, registerID, openedBy int64, opening decimal.Decimal) (Session, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO cash_sessions (register_id, opened_by, opening_amount, status, opened_at)
		VALUES ($1, $2, $3, 'open', $4)
		RETURNING `+sessionColumns,
		registerID, openedBy, opening, t.clock.Now())
	return scanSession(row)
}

func (t *txRepo) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = t.clock.Now()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO cash_movements (cash_session_id, movement_type, amount, reason, ref_sale_id, created_by, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		RETURNING id`,
		m.SessionID, m.Type, m.Amount, m.Reason, m.RefSaleID, m.CreatedBy, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return Movement{}, err
	}
	return m, nil
}

func sessionTotals(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, sessionID int64) (Totals, error) {
	rows, err := q.Query(ctx, `
		SELECT movement_type, COALESCE(SUM(amount), 0)
		FROM cash_movements
		WHERE cash_session_id = $1
		GROUP BY movement_type`, sessionID)
	if err != nil {
		return Totals{}, err
	}
	defer rows.Close()

	var totals Totals
	for rows.Next() {
		var (
			mt  MovementType
			sum decimal.Decimal
		)
		if err := rows.Scan(&mt, &sum); err != nil {
			return Totals{}, err
		}
		switch mt {
		case MovementSale:
			totals.Sales = sum
		case MovementSupply:
			totals.Supplies = sum
		case MovementWithdrawal:
			totals.Withdrawals = sum
		case MovementRefund:
			totals.Refunds = sum
		case MovementAdjustment:
			totals.Adjustments = sum
		}
	}
	return totals, rows.Err()
}

func (t *txRepo) SessionTotals(ctx context.Context, sessionID int64) (Totals, error) {
	return sessionTotals(ctx, t.tx, sessionID)
}

func (t *txRepo) CloseSession(ctx context.Context, sessionID int64, closing, expected, difference decimal.Decimal, consistent bool, notes string) (Session, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE cash_sessions
		SET status = 'closed', closed_at = $2, closing_amount = $3,
			expected_amount = $4, difference = $5, is_consistent = $6,
			notes = NULLIF($7, '')
		WHERE id = $1
		RETURNING `+sessionColumns,
		sessionID, t.clock.Now(), closing, expected, difference, consistent, notes)
	return scanSession(row)
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

// Get returns one session.
func (r *Repository) Get(ctx context.Context, sessionID int64) (Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM cash_sessions WHERE id = $1`, sessionID)
	return scanSession(row)
}

// List returns sessions, newest first.
func (r *Repository) List(ctx context.Context, registerID int64, limit, offset int) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM cash_sessions`
	args := []any{limit, offset}
	if registerID != 0 {
		query += ` WHERE register_id = $3`
		args = append(args, registerID)
	}
	query += ` ORDER BY opened_at DESC, id DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Totals returns aggregated movement sums for one session.
func (r *Repository) Totals(ctx context.Context, sessionID int64) (Totals, error) {
	return sessionTotals(ctx, r.pool, sessionID)
}

// Movements returns the drawer trail for one session.
func (r *Repository) Movements(ctx context.Context, sessionID int64) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, cash_session_id, movement_type, amount, reason, ref_sale_id, created_by, created_at
		FROM cash_movements WHERE cash_session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var (
			m       Movement
			reason  pgtype.Text
			refSale pgtype.Int8
			created pgtype.Timestamptz
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Type, &m.Amount, &reason, &refSale, &m.CreatedBy, &created); err != nil {
			return nil, err
		}
		m.Reason = reason.String
		if refSale.Valid {
			id := refSale.Int64
			m.RefSaleID = &id
		}
		m.CreatedAt = created.Time
		out = append(out, m)
	}
	return out, rows.Err()
}
