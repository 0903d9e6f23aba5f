package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/credit"
	"github.com/vela-pos/vela/internal/observability"
	"github.com/vela-pos/vela/internal/receivables"
	"github.com/vela-pos/vela/internal/shared"
	"github.com/vela-pos/vela/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Create(ctx context.Context, customerID *int64, createdBy int64) (Sale, error)
	Get(ctx context.Context, saleID int64) (Sale, error)
	List(ctx context.Context, filter ListFilter) ([]Sale, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	AddItem(ctx context.Context, saleID, productID int64, qty float64) (Item, error)
	RemoveItem(ctx context.Context, saleID, itemID int64) error
	SetDiscount(ctx context.Context, saleID int64, discount decimal.Decimal) error
}

// IdempotencyPort guards checkout retries.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
	Delete(ctx context.Context, key string) error
}

// Service handles the sale state machine.
type Service struct {
	logger      *slog.Logger
	repo        RepositoryPort
	engine      *credit.Engine
	alerts      credit.AlertSink
	idempotency IdempotencyPort
	metrics     *observability.Metrics
	clock       shared.Clock
}

// NewService builds Service. idempotency and metrics may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, engine *credit.Engine, alerts credit.AlertSink, idempotency IdempotencyPort, metrics *observability.Metrics, clock shared.Clock) *Service {
	return &Service{
		logger:      logger,
		repo:        repo,
		engine:      engine,
		alerts:      alerts,
		idempotency: idempotency,
		metrics:     metrics,
		clock:       clock,
	}
}

// Create opens a new sale.
func (s *Service) Create(ctx context.Context, customerID *int64, createdBy int64) (Sale, error) {
	return s.repo.Create(ctx, customerID, createdBy)
}

// Get returns one sale with items and payments.
func (s *Service) Get(ctx context.Context, saleID int64) (Sale, error) {
	return s.repo.Get(ctx, saleID)
}

// List returns one page of sales plus pagination metadata.
func (s *Service) List(ctx context.Context, filter ListFilter, page shared.PageRequest) ([]Sale, shared.Pagination, error) {
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

// AddItem appends a line while the sale is open. The requested
// quantity is checked against live stock.
func (s *Service) AddItem(ctx context.Context, saleID, productID int64, qty float64) (Item, error) {
	if qty <= 0 {
		return Item{}, ErrInvalidQuantity
	}
	return s.repo.AddItem(ctx, saleID, productID, qty)
}

// RemoveItem deletes a line while the sale is open.
func (s *Service) RemoveItem(ctx context.Context, saleID, itemID int64) error {
	return s.repo.RemoveItem(ctx, saleID, itemID)
}

// SetDiscount updates the discount while the sale is open.
func (s *Service) SetDiscount(ctx context.Context, saleID int64, discount decimal.Decimal) error {
	if discount.IsNegative() {
		return ErrInvalidAmount
	}
	return s.repo.SetDiscount(ctx, saleID, discount)
}

// ApplyPayment records a payment against a pending or open sale and
// flips it to paid once cumulative payments cover the amount due.
func (s *Service) ApplyPayment(ctx context.Context, saleID int64, mode PaymentMode, amount decimal.Decimal) (Sale, error) {
	if !mode.Valid() {
		return Sale{}, ErrInvalidMode
	}
	if !amount.IsPositive() {
		return Sale{}, ErrInvalidAmount
	}

	var updated Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		switch sale.Status {
		case StatusPaid:
			return ErrAlreadySettled
		case StatusCanceled:
			return ErrAlreadyCanceled
		}

		if _, err := tx.InsertPayment(ctx, Payment{SaleID: saleID, Mode: mode, Amount: amount}); err != nil {
			return err
		}
		paid, err := tx.SumPayments(ctx, saleID)
		if err != nil {
			return err
		}
		if paid.GreaterThanOrEqual(sale.TotalDue()) {
			if err := tx.SetStatus(ctx, saleID, StatusPaid); err != nil {
				return err
			}
			sale.Status = StatusPaid
		}
		updated = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	return updated, nil
}

// Checkout settles an open sale. Stock OUT movements, payments,
// receivables, customer credit and history commit atomically; any
// failure rolls the whole checkout back.
func (s *Service) Checkout(ctx context.Context, input CheckoutInput) (CheckoutResult, error) {
	if !input.Mode.Valid() {
		return CheckoutResult{}, ErrInvalidMode
	}

	if s.idempotency != nil && input.IdempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "sales.checkout"); err != nil {
			return CheckoutResult{}, err
		}
	}

	var (
		result       CheckoutResult
		recalcResult credit.RecalcResult
		creditUsed   bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, input.SaleID)
		if err != nil {
			return err
		}
		switch sale.Status {
		case StatusCanceled:
			return ErrAlreadyCanceled
		case StatusPaid, StatusPending:
			return ErrAlreadySettled
		}

		items, err := tx.GetItems(ctx, input.SaleID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptySale
		}
		totalDue := sale.TotalDue()

		// Stock leaves for every mode. Insufficient stock on any
		// line aborts the whole checkout.
		for _, item := range items {
			if err := tx.LockProduct(ctx, item.ProductID); err != nil {
				return err
			}
			if _, err := tx.ApplyMovement(ctx, stock.MovementInput{
				ProductID: item.ProductID,
				Type:      stock.MovementOut,
				Quantity:  item.Quantity,
				Reason:    "sale checkout",
				RefType:   "sale",
				RefID:     sale.ID,
				CreatedBy: input.ActorID,
			}); err != nil {
				return err
			}
		}

		if input.Mode.Immediate() {
			if _, err := tx.InsertPayment(ctx, Payment{
				SaleID: sale.ID,
				Mode:   input.Mode,
				Amount: totalDue,
			}); err != nil {
				return err
			}
			if input.Mode == ModeCash && input.CashSessionID != 0 {
				if err := tx.InsertCashMovement(ctx, input.CashSessionID, totalDue, sale.ID, input.ActorID); err != nil {
					return err
				}
			}
			if err := tx.SetStatus(ctx, sale.ID, StatusPaid); err != nil {
				return err
			}
			sale.Status = StatusPaid
			result = CheckoutResult{Sale: sale, TotalDue: totalDue}
			return nil
		}

		// Credit checkout.
		if sale.CustomerID == nil {
			return ErrCustomerRequired
		}
		customerID := *sale.CustomerID
		if err := tx.LockCustomer(ctx, customerID); err != nil {
			return err
		}
		if err := s.engine.ValidateSale(ctx, tx, customerID, totalDue, input.Installments); err != nil {
			return err
		}

		plan := credit.PlanInstallments(totalDue, input.Installments, s.clock.Now())
		for _, inst := range plan {
			if _, err := tx.InsertReceivable(ctx, receivables.Receivable{
				CustomerID:        customerID,
				SaleID:            sale.ID,
				InstallmentNumber: inst.Number,
				DueDate:           inst.DueDate,
				Amount:            inst.Amount,
				Status:            receivables.StatusOpen,
			}); err != nil {
				return err
			}
		}

		if err := tx.AdjustCreditUsed(ctx, customerID, totalDue); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, credit.History{
			CustomerID: customerID,
			EventType:  credit.EventSale,
			Amount:     totalDue,
			Notes:      strconv.FormatInt(sale.ID, 10),
			CreatedAt:  s.clock.Now(),
		}); err != nil {
			return err
		}
		recalcResult, err = s.engine.RecalcAndApplyIn(ctx, tx, customerID)
		if err != nil {
			return err
		}
		creditUsed = true

		if err := tx.SetStatus(ctx, sale.ID, StatusPending); err != nil {
			return err
		}
		sale.Status = StatusPending
		result = CheckoutResult{Sale: sale, Installments: len(plan), TotalDue: totalDue}
		return nil
	})
	if err != nil {
		if s.idempotency != nil && input.IdempotencyKey != "" {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		s.observeCheckout(input.Mode, "rejected")
		return CheckoutResult{}, err
	}

	if creditUsed {
		s.emitIfBlocked(ctx, recalcResult)
	}
	s.observeCheckout(input.Mode, "completed")
	return result, nil
}

// Cancel reverses a sale. Stock returns via IN movements, open
// receivables flip to canceled and the credit they held is released.
func (s *Service) Cancel(ctx context.Context, saleID, actorID int64) (Sale, error) {
	var (
		canceled     Sale
		recalcResult credit.RecalcResult
		didRecalc    bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		switch sale.Status {
		case StatusCanceled:
			return ErrAlreadyCanceled
		case StatusPaid:
			return ErrAlreadySettled
		}

		// Open sales never moved stock; checked-out ones did.
		if sale.Status == StatusPending {
			items, err := tx.GetItems(ctx, saleID)
			if err != nil {
				return err
			}
			for _, item := range items {
				if err := tx.LockProduct(ctx, item.ProductID); err != nil {
					return err
				}
				if _, err := tx.ApplyMovement(ctx, stock.MovementInput{
					ProductID: item.ProductID,
					Type:      stock.MovementIn,
					Quantity:  item.Quantity,
					Reason:    "sale canceled",
					RefType:   "sale",
					RefID:     sale.ID,
					CreatedBy: actorID,
				}); err != nil {
					return err
				}
			}
		}

		if sale.CustomerID != nil {
			customerID := *sale.CustomerID
			if err := tx.LockCustomer(ctx, customerID); err != nil {
				return err
			}
			outstanding, err := tx.CancelReceivables(ctx, saleID)
			if err != nil {
				return err
			}
			if outstanding.IsPositive() {
				if err := tx.AdjustCreditUsed(ctx, customerID, outstanding.Neg()); err != nil {
					return err
				}
				recalcResult, err = s.engine.RecalcAndApplyIn(ctx, tx, customerID)
				if err != nil {
					return err
				}
				didRecalc = true
			}
		}

		if err := tx.SetStatus(ctx, saleID, StatusCanceled); err != nil {
			return err
		}
		sale.Status = StatusCanceled
		canceled = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	if didRecalc {
		s.emitIfBlocked(ctx, recalcResult)
	}
	return canceled, nil
}

func (s *Service) observeCheckout(mode PaymentMode, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveCheckout(string(mode), outcome)
	}
}

func (s *Service) emitIfBlocked(ctx context.Context, result credit.RecalcResult) {
	if !result.Blocked || s.alerts == nil {
		return
	}
	s.alerts.Emit(ctx, credit.Alert{
		CustomerID: result.CustomerID,
		Kind:       "credit_blocked",
		Message:    fmt.Sprintf("customer %d blocked after sale recalc", result.CustomerID),
	})
}
