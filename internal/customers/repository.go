package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists customers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, name, COALESCE(email, ''), COALESCE(cpf_cnpj, ''),
	COALESCE(phone, ''), COALESCE(address, ''),
	credit_limit, credit_used, credit_score, credit_profile, is_credit_blocked,
	created_at, updated_at, deleted_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var (
		c       Customer
		created pgtype.Timestamptz
		updated pgtype.Timestamptz
		deleted pgtype.Timestamptz
	)
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.CPFCNPJ, &c.Phone, &c.Address,
		&c.CreditLimit, &c.CreditUsed, &c.CreditScore, &c.CreditProfile, &c.CreditBlocked,
		&created, &updated, &deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = created.Time
	c.UpdatedAt = updated.Time
	if deleted.Valid {
		t := deleted.Time
		c.DeletedAt = &t
	}
	return &c, nil
}

// Create inserts a customer with default credit state.
func (r *Repository) Create(ctx context.Context, input Input) (*Customer, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO customers
			(name, email, cpf_cnpj, phone, address, credit_limit, credit_used,
			 credit_score, credit_profile, is_credit_blocked, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''),
			$6, 0, 500, 'BRONZE', FALSE, NOW(), NOW())
		RETURNING `+customerColumns,
		input.Name, input.Email, input.CPFCNPJ, input.Phone, input.Address, input.CreditLimit)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return c, nil
}

// Get returns one active customer.
func (r *Repository) Get(ctx context.Context, id int64) (*Customer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanCustomer(row)
}

// Update applies a partial update and bumps updated_at.
func (r *Repository) Update(ctx context.Context, id int64, patch Patch) (*Customer, error) {
	var (
		sets []string
		args []any
	)
	appendSet := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Name != nil {
		appendSet("name", *patch.Name)
	}
	if patch.Email != nil {
		appendSet("email", nullIfEmpty(*patch.Email))
	}
	if patch.CPFCNPJ != nil {
		appendSet("cpf_cnpj", nullIfEmpty(*patch.CPFCNPJ))
	}
	if patch.Phone != nil {
		appendSet("phone", nullIfEmpty(*patch.Phone))
	}
	if patch.Address != nil {
		appendSet("address", nullIfEmpty(*patch.Address))
	}
	if patch.CreditLimit != nil {
		appendSet("credit_limit", *patch.CreditLimit)
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE customers SET %s WHERE id = $%d AND deleted_at IS NULL
		RETURNING %s`, strings.Join(sets, ", "), len(args), customerColumns), args...)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return c, nil
}

// SoftDelete marks the customer deleted.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE customers SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns active customers matching the filter.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Customer, error) {
	var (
		conds = []string{"deleted_at IS NULL"}
		args  []any
	)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR cpf_cnpj ILIKE $%d)",
			len(args), len(args), len(args)))
	}
	if filter.Blocked != nil {
		args = append(args, *filter.Blocked)
		conds = append(conds, fmt.Sprintf("is_credit_blocked = $%d", len(args)))
	}
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`,
		customerColumns, strings.Join(conds, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("customers: list: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}
