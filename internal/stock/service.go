package stock

import (
	"context"
	"strconv"
	"strings"

	"github.com/vela-pos/vela/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CurrentStock(ctx context.Context, productID int64) (float64, error)
	ListMovements(ctx context.Context, filter ListFilter) ([]Movement, error)
	Levels(ctx context.Context, lowOnly bool) ([]Level, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates manual stock operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Post records one manual movement, locking the product row first.
func (s *Service) Post(ctx context.Context, input MovementInput) (Movement, error) {
	if input.ProductID == 0 {
		return Movement{}, ErrProductNotFound
	}
	input.Reason = strings.TrimSpace(input.Reason)
	if input.Type == MovementAdjust && input.Reason == "" {
		return Movement{}, shared.NewPolicyError("adjust_reason", "adjustment requires a reason")
	}
	if input.RefType == "" {
		input.RefType = "manual"
	}

	var mv Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockProduct(ctx, input.ProductID); err != nil {
			return err
		}
		var err error
		mv, err = tx.Apply(ctx, input)
		return err
	})
	if err != nil {
		return Movement{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.CreatedBy,
			Action:   "stock.movement",
			Entity:   "stock_movement",
			EntityID: strconv.FormatInt(mv.ID, 10),
			Meta:     map[string]any{"type": mv.Type, "quantity": mv.Quantity},
		})
	}
	return mv, nil
}

// CurrentStock returns the on-hand quantity for one product.
func (s *Service) CurrentStock(ctx context.Context, productID int64) (float64, error) {
	return s.repo.CurrentStock(ctx, productID)
}

// List returns ledger entries matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Movement, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListMovements(ctx, filter)
}

// Levels returns per-product on-hand quantities.
func (s *Service) Levels(ctx context.Context, lowOnly bool) ([]Level, error) {
	return s.repo.Levels(ctx, lowOnly)
}
