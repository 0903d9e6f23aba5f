package customers

import (
	"context"
	"errors"
	"strings"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, input Input) (*Customer, error)
	Get(ctx context.Context, id int64) (*Customer, error)
	Update(ctx context.Context, id int64, patch Patch) (*Customer, error)
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ListFilter) ([]Customer, error)
}

// Service handles customer business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create validates and creates a customer.
func (s *Service) Create(ctx context.Context, input Input) (*Customer, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, errors.New("customers: name required")
	}
	if input.CreditLimit.IsNegative() {
		return nil, errors.New("customers: credit limit must be >= 0")
	}
	return s.repo.Create(ctx, input)
}

// Get retrieves one customer.
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (*Customer, error) {
	if patch.CreditLimit != nil && patch.CreditLimit.IsNegative() {
		return nil, errors.New("customers: credit limit must be >= 0")
	}
	return s.repo.Update(ctx, id, patch)
}

// Delete soft deletes a customer.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.SoftDelete(ctx, id)
}

// List returns customers matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Customer, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}
