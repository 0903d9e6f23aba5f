package masterdata

import (
	"context"
	"errors"
	"strings"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (*Product, error)
	SoftDeleteProduct(ctx context.Context, id int64) error
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, error)
	CreateCategory(ctx context.Context, name string) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateSupplier(ctx context.Context, input SupplierInput) (*Supplier, error)
	GetSupplier(ctx context.Context, id int64) (*Supplier, error)
	UpdateSupplier(ctx context.Context, id int64, patch SupplierPatch) (*Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
}

// Service handles master data business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateProduct validates and creates a product.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	input.SKU = strings.TrimSpace(input.SKU)
	input.Name = strings.TrimSpace(input.Name)
	if input.SKU == "" || input.Name == "" {
		return nil, errors.New("masterdata: sku and name required")
	}
	if input.SellPrice.IsNegative() || input.CostPrice.IsNegative() {
		return nil, errors.New("masterdata: prices must be >= 0")
	}
	return s.repo.CreateProduct(ctx, input)
}

// GetProduct retrieves a product.
func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// UpdateProduct applies a partial update.
func (s *Service) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (*Product, error) {
	if patch.SellPrice != nil && patch.SellPrice.IsNegative() {
		return nil, errors.New("masterdata: sell price must be >= 0")
	}
	if patch.CostPrice != nil && patch.CostPrice.IsNegative() {
		return nil, errors.New("masterdata: cost price must be >= 0")
	}
	return s.repo.UpdateProduct(ctx, id, patch)
}

// DeleteProduct soft deletes a product.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.SoftDeleteProduct(ctx, id)
}

// ListProducts returns products matching the filter.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 100
	}
	return s.repo.ListProducts(ctx, filter)
}

// CreateCategory creates a product category.
func (s *Service) CreateCategory(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("masterdata: category name required")
	}
	return s.repo.CreateCategory(ctx, name)
}

// ListCategories returns all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// CreateSupplier validates and creates a supplier.
func (s *Service) CreateSupplier(ctx context.Context, input SupplierInput) (*Supplier, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, errors.New("masterdata: supplier name required")
	}
	return s.repo.CreateSupplier(ctx, input)
}

// GetSupplier retrieves a supplier.
func (s *Service) GetSupplier(ctx context.Context, id int64) (*Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// UpdateSupplier applies a partial update.
func (s *Service) UpdateSupplier(ctx context.Context, id int64, patch SupplierPatch) (*Supplier, error) {
	return s.repo.UpdateSupplier(ctx, id, patch)
}

// ListSuppliers returns all active suppliers.
func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}
