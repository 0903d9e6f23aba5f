package payables

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Create(ctx context.Context, input CreateInput) (Payable, error)
	Get(ctx context.Context, id int64) (Payable, error)
	List(ctx context.Context, filter ListFilter) ([]Payable, error)
	ListPayments(ctx context.Context, payableID int64) ([]Payment, error)
	MarkOverdue(ctx context.Context, now time.Time) (SweepResult, error)
}

// Service handles supplier payable settlement.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	clock  shared.Clock
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, clock shared.Clock) *Service {
	return &Service{logger: logger, repo: repo, clock: clock}
}

// Create registers a payable outside the purchase flow, for example a
// utility bill.
func (s *Service) Create(ctx context.Context, input CreateInput) (Payable, error) {
	if !input.Amount.IsPositive() {
		return Payable{}, ErrInvalidAmount
	}
	input.Notes = strings.TrimSpace(input.Notes)
	return s.repo.Create(ctx, input)
}

// Pay applies a disbursement to one payable. Overpayment is capped at
// the remaining balance; the payable flips to paid the moment the paid
// amount covers the full amount.
func (s *Service) Pay(ctx context.Context, id int64, amount decimal.Decimal, paidBy int64) (PaymentResult, error) {
	if !amount.IsPositive() {
		return PaymentResult{}, ErrInvalidAmount
	}

	var result PaymentResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch p.Status {
		case StatusPaid:
			return ErrAlreadyPaid
		case StatusCanceled:
			return ErrCanceled
		}

		applied := decimal.Min(p.Remaining(), amount)
		payment, err := tx.InsertPayment(ctx, Payment{
			PayableID: p.ID,
			Amount:    applied,
			PaidBy:    paidBy,
		})
		if err != nil {
			return err
		}

		p.PaidAmount = p.PaidAmount.Add(applied)
		var paidAt *time.Time
		if p.PaidAmount.GreaterThanOrEqual(p.Amount) {
			p.Status = StatusPaid
			now := s.clock.Now()
			paidAt = &now
			p.PaidAt = paidAt
		} else {
			p.Status = StatusPartial
		}
		if err := tx.ApplyPayment(ctx, p.ID, p.PaidAmount, p.Status, paidAt); err != nil {
			return err
		}

		result = PaymentResult{Payable: p, Payment: payment, AppliedAmount: applied}
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}
	return result, nil
}

// Get returns one payable.
func (s *Service) Get(ctx context.Context, id int64) (Payable, error) {
	return s.repo.Get(ctx, id)
}

// List returns payables matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Payable, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

// Payments returns the payment trail for one payable.
func (s *Service) Payments(ctx context.Context, payableID int64) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, payableID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, payableID)
}

// RefreshOverdue sweeps past-due open payables into overdue.
func (s *Service) RefreshOverdue(ctx context.Context) (SweepResult, error) {
	result, err := s.repo.MarkOverdue(ctx, s.clock.Now())
	if err != nil {
		return SweepResult{}, err
	}
	if result.MarkedOverdue > 0 {
		s.logger.Info("payable overdue sweep", slog.Int("marked", result.MarkedOverdue))
	}
	return result, nil
}
