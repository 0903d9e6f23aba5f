package receivables

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/credit"
	"github.com/vela-pos/vela/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Receivable, error)
	List(ctx context.Context, filter ListFilter) ([]Receivable, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	ListPayments(ctx context.Context, receivableID int64) ([]Payment, error)
	MarkOverdue(ctx context.Context, now time.Time) (SweepResult, error)
}

// RecalcPort recalculates one customer after a sweep. Satisfied by the
// credit service.
type RecalcPort interface {
	RecalcAndApply(ctx context.Context, customerID int64) (credit.RecalcResult, error)
}

// Service handles receivable settlement.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	engine *credit.Engine
	recalc RecalcPort
	alerts credit.AlertSink
	clock  shared.Clock
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, engine *credit.Engine, recalc RecalcPort, alerts credit.AlertSink, clock shared.Clock) *Service {
	return &Service{logger: logger, repo: repo, engine: engine, recalc: recalc, alerts: alerts, clock: clock}
}

// Pay applies a payment to one receivable. Overpayment is capped at
// the remaining balance. Settlement, credit release, history and score
// recalc commit atomically.
func (s *Service) Pay(ctx context.Context, id int64, amount decimal.Decimal, paidBy int64) (PaymentResult, error) {
	if !amount.IsPositive() {
		return PaymentResult{}, ErrInvalidAmount
	}

	var (
		result       PaymentResult
		recalcResult credit.RecalcResult
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch rec.Status {
		case StatusPaid:
			return ErrAlreadyPaid
		case StatusCanceled:
			return ErrCanceled
		}
		if err := tx.LockCustomer(ctx, rec.CustomerID); err != nil {
			return err
		}

		applied := decimal.Min(rec.Remaining(), amount)
		payment, err := tx.InsertPayment(ctx, Payment{
			ReceivableID: rec.ID,
			Amount:       applied,
			PaidBy:       paidBy,
		})
		if err != nil {
			return err
		}

		rec.PaidAmount = rec.PaidAmount.Add(applied)
		var paidAt *time.Time
		if rec.PaidAmount.GreaterThanOrEqual(rec.Amount) {
			rec.Status = StatusPaid
			now := s.clock.Now()
			paidAt = &now
			rec.PaidAt = paidAt
		} else {
			rec.Status = StatusPartial
		}
		if err := tx.ApplyPayment(ctx, rec.ID, rec.PaidAmount, rec.Status, paidAt); err != nil {
			return err
		}

		if err := tx.AdjustCreditUsed(ctx, rec.CustomerID, applied.Neg()); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, credit.History{
			CustomerID: rec.CustomerID,
			EventType:  credit.EventPayment,
			Amount:     applied,
			Notes:      strconv.FormatInt(rec.ID, 10),
			CreatedAt:  s.clock.Now(),
		}); err != nil {
			return err
		}

		recalcResult, err = s.engine.RecalcAndApplyIn(ctx, tx, rec.CustomerID)
		if err != nil {
			return err
		}

		result = PaymentResult{Receivable: rec, Payment: payment, AppliedAmount: applied}
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}

	s.emitIfBlocked(ctx, recalcResult)
	return result, nil
}

// Get returns one receivable.
func (s *Service) Get(ctx context.Context, id int64) (Receivable, error) {
	return s.repo.Get(ctx, id)
}

// List returns one page of receivables plus pagination metadata.
func (s *Service) List(ctx context.Context, filter ListFilter, page shared.PageRequest) ([]Receivable, shared.Pagination, error) {
	filter.Limit = page.Limit()
	filter.Offset = page.Offset()
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, total), nil
}

// Payments returns the payment trail for one receivable.
func (s *Service) Payments(ctx context.Context, receivableID int64) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, receivableID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, receivableID)
}

// RefreshOverdue sweeps past-due open receivables into overdue and
// recalculates every affected customer.
func (s *Service) RefreshOverdue(ctx context.Context) (SweepResult, error) {
	result, err := s.repo.MarkOverdue(ctx, s.clock.Now())
	if err != nil {
		return SweepResult{}, err
	}
	for _, customerID := range result.AffectedCustomers {
		if _, err := s.recalc.RecalcAndApply(ctx, customerID); err != nil {
			return SweepResult{}, fmt.Errorf("receivables: recalc customer %d after sweep: %w", customerID, err)
		}
	}
	if result.MarkedOverdue > 0 {
		s.logger.Info("overdue sweep",
			slog.Int("marked", result.MarkedOverdue),
			slog.Int("customers", len(result.AffectedCustomers)))
	}
	return result, nil
}

func (s *Service) emitIfBlocked(ctx context.Context, result credit.RecalcResult) {
	if !result.Blocked || s.alerts == nil {
		return
	}
	s.alerts.Emit(ctx, credit.Alert{
		CustomerID: result.CustomerID,
		Kind:       "credit_blocked",
		Message:    fmt.Sprintf("customer %d blocked after payment recalc", result.CustomerID),
	})
}
