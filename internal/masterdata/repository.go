package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL-backed persistence for master data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, sku, name, description, category_id, cost_price, sell_price, min_stock, is_active, created_at, updated_at, deleted_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var categoryID pgtype.Int8
	var deletedAt pgtype.Timestamptz
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &categoryID,
		&p.CostPrice, &p.SellPrice, &p.MinStock, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt, &deletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		p.CategoryID = &categoryID.Int64
	}
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Time
	}
	return &p, nil
}

// CreateProduct inserts a product.
func (r *Repository) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	query := `
		INSERT INTO products (sku, name, description, category_id, cost_price, sell_price, min_stock, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW(), NOW())
		RETURNING ` + productColumns

	var categoryID pgtype.Int8
	if input.CategoryID != nil {
		categoryID = pgtype.Int8{Int64: *input.CategoryID, Valid: true}
	}

	p, err := scanProduct(r.pool.QueryRow(ctx, query,
		input.SKU, input.Name, input.Description, categoryID,
		input.CostPrice, input.SellPrice, input.MinStock,
	))
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return p, nil
}

// GetProduct retrieves a product by ID.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND deleted_at IS NULL`
	return scanProduct(r.pool.QueryRow(ctx, query, id))
}

// UpdateProduct applies a patch field by field.
func (r *Repository) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (*Product, error) {
	query := `UPDATE products SET`
	args := []any{}
	argNum := 1

	appendSet := func(column string, value any) {
		if argNum > 1 {
			query += ","
		}
		query += fmt.Sprintf(" %s = $%d", column, argNum)
		args = append(args, value)
		argNum++
	}

	if patch.Name != nil {
		appendSet("name", *patch.Name)
	}
	if patch.Description != nil {
		appendSet("description", *patch.Description)
	}
	if patch.CategoryID != nil {
		appendSet("category_id", *patch.CategoryID)
	}
	if patch.CostPrice != nil {
		appendSet("cost_price", *patch.CostPrice)
	}
	if patch.SellPrice != nil {
		appendSet("sell_price", *patch.SellPrice)
	}
	if patch.MinStock != nil {
		appendSet("min_stock", *patch.MinStock)
	}
	if patch.IsActive != nil {
		appendSet("is_active", *patch.IsActive)
	}
	if argNum == 1 {
		return r.GetProduct(ctx, id)
	}

	query += fmt.Sprintf(", updated_at = NOW() WHERE id = $%d AND deleted_at IS NULL RETURNING %s", argNum, productColumns)
	args = append(args, id)

	return scanProduct(r.pool.QueryRow(ctx, query, args...))
}

// SoftDeleteProduct marks a product deleted.
func (r *Repository) SoftDeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListProducts returns products matching the filter.
func (r *Repository) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE deleted_at IS NULL`
	args := []any{}
	argNum := 1

	if filter.Search != "" {
		query += fmt.Sprintf(" AND (name ILIKE $%d OR sku ILIKE $%d)", argNum, argNum)
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}
	if filter.CategoryID > 0 {
		query += fmt.Sprintf(" AND category_id = $%d", argNum)
		args = append(args, filter.CategoryID)
		argNum++
	}
	if filter.ActiveOnly {
		query += " AND is_active"
	}
	query += " ORDER BY name"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, name string) (*Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (name, created_at) VALUES ($1, NOW()) RETURNING id, name, created_at`,
		name,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return &c, nil
}

// ListCategories returns all categories.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const supplierColumns = `id, name, email, phone, cnpj, city, state, is_active, created_at, deleted_at`

func scanSupplier(row pgx.Row) (*Supplier, error) {
	var s Supplier
	var deletedAt pgtype.Timestamptz
	err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.CNPJ, &s.City, &s.State, &s.IsActive, &s.CreatedAt, &deletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		s.DeletedAt = &deletedAt.Time
	}
	return &s, nil
}

// CreateSupplier inserts a supplier.
func (r *Repository) CreateSupplier(ctx context.Context, input SupplierInput) (*Supplier, error) {
	query := `
		INSERT INTO suppliers (name, email, phone, cnpj, city, state, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW())
		RETURNING ` + supplierColumns

	s, err := scanSupplier(r.pool.QueryRow(ctx, query,
		input.Name, input.Email, input.Phone, input.CNPJ, input.City, input.State,
	))
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return s, nil
}

// GetSupplier retrieves a supplier by ID.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (*Supplier, error) {
	return scanSupplier(r.pool.QueryRow(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE id = $1 AND deleted_at IS NULL`, id))
}

// UpdateSupplier applies a patch field by field.
func (r *Repository) UpdateSupplier(ctx context.Context, id int64, patch SupplierPatch) (*Supplier, error) {
	query := `UPDATE suppliers SET`
	args := []any{}
	argNum := 1

	appendSet := func(column string, value any) {
		if argNum > 1 {
			query += ","
		}
		query += fmt.Sprintf(" %s = $%d", column, argNum)
		args = append(args, value)
		argNum++
	}

	if patch.Name != nil {
		appendSet("name", *patch.Name)
	}
	if patch.Email != nil {
		appendSet("email", *patch.Email)
	}
	if patch.Phone != nil {
		appendSet("phone", *patch.Phone)
	}
	if patch.City != nil {
		appendSet("city", *patch.City)
	}
	if patch.State != nil {
		appendSet("state", *patch.State)
	}
	if patch.IsActive != nil {
		appendSet("is_active", *patch.IsActive)
	}
	if argNum == 1 {
		return r.GetSupplier(ctx, id)
	}

	query += fmt.Sprintf(" WHERE id = $%d AND deleted_at IS NULL RETURNING %s", argNum, supplierColumns)
	args = append(args, id)

	s, err := scanSupplier(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return s, nil
}

// ListSuppliers returns active suppliers.
func (r *Repository) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE deleted_at IS NULL ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, *s)
	}
	return suppliers, rows.Err()
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}
