package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/payables"
	"github.com/vela-pos/vela/internal/shared"
	"github.com/vela-pos/vela/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Create(ctx context.Context, input OrderInput) (Order, error)
	Get(ctx context.Context, orderID int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
}

// Service handles purchase orders and goods receipt.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	audit  *shared.AuditLogger
	clock  shared.Clock
}

// NewService builds Service. audit may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, audit *shared.AuditLogger, clock shared.Clock) *Service {
	return &Service{logger: logger, repo: repo, audit: audit, clock: clock}
}

// CreateOrder validates and places an order.
func (s *Service) CreateOrder(ctx context.Context, input OrderInput) (Order, error) {
	if len(input.Items) == 0 {
		return Order{}, ErrEmptyOrder
	}
	for _, it := range input.Items {
		if it.Quantity <= 0 || !it.UnitCost.IsPositive() {
			return Order{}, ErrInvalidItem
		}
	}
	input.Notes = strings.TrimSpace(input.Notes)
	order, err := s.repo.Create(ctx, input)
	if err != nil {
		return Order{}, err
	}
	s.auditAction(ctx, input.CreatedBy, "purchase_order.create", order.ID)
	return order, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, orderID int64) (Order, error) {
	return s.repo.Get(ctx, orderID)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

// Receive registers a delivery. Stock IN movements, the received
// quantities, the supplier payable and the order status commit
// atomically. Each delivered quantity is checked against what is still
// outstanding on its line.
func (s *Service) Receive(ctx context.Context, input ReceiptInput) (ReceiptResult, error) {
	if len(input.Items) == 0 {
		return ReceiptResult{}, ErrEmptyReceipt
	}
	for _, it := range input.Items {
		if it.Quantity <= 0 {
			return ReceiptResult{}, ErrInvalidItem
		}
	}
	if input.DueDate.IsZero() {
		input.DueDate = s.clock.Now().AddDate(0, 0, 30)
	}

	var result ReceiptResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != StatusOrdered && order.Status != StatusPartial {
			return ErrNotReceivable
		}

		lines, err := tx.GetOrderItems(ctx, input.OrderID)
		if err != nil {
			return err
		}
		byProduct := make(map[int64]*OrderItem, len(lines))
		for i := range lines {
			byProduct[lines[i].ProductID] = &lines[i]
		}

		receivedValue := decimal.Zero
		for _, rcv := range input.Items {
			line, ok := byProduct[rcv.ProductID]
			if !ok {
				return fmt.Errorf("product %d: %w", rcv.ProductID, ErrUnknownItem)
			}
			if rcv.Quantity > line.Outstanding() {
				return fmt.Errorf("product %d: %w", rcv.ProductID, ErrOverReceipt)
			}

			if err := tx.LockProduct(ctx, rcv.ProductID); err != nil {
				return err
			}
			if _, err := tx.ApplyMovement(ctx, stock.MovementInput{
				ProductID: rcv.ProductID,
				Type:      stock.MovementIn,
				Quantity:  rcv.Quantity,
				UnitCost:  line.UnitCost,
				Reason:    "purchase receipt",
				RefType:   "purchase",
				RefID:     order.ID,
				CreatedBy: input.ReceivedBy,
			}); err != nil {
				return err
			}
			if err := tx.AddItemReceived(ctx, line.ID, rcv.Quantity); err != nil {
				return err
			}
			line.Received += rcv.Quantity
			receivedValue = receivedValue.Add(line.UnitCost.Mul(decimal.NewFromFloat(rcv.Quantity)))
		}
		receivedValue = receivedValue.Round(2)

		status := StatusReceived
		for _, line := range lines {
			if line.Outstanding() > 0 {
				status = StatusPartial
				break
			}
		}
		if err := tx.SetOrderStatus(ctx, order.ID, status); err != nil {
			return err
		}
		order.Status = status
		order.Items = lines

		orderID := order.ID
		payable, err := tx.CreatePayable(ctx, payables.CreateInput{
			SupplierID:      order.SupplierID,
			PurchaseOrderID: &orderID,
			DueDate:         input.DueDate,
			Amount:          receivedValue,
			Notes:           fmt.Sprintf("goods receipt for order %d", order.ID),
		})
		if err != nil {
			return err
		}

		result = ReceiptResult{Order: order, PayableID: payable.ID, ReceivedValue: receivedValue}
		return nil
	})
	if err != nil {
		return ReceiptResult{}, err
	}

	s.auditAction(ctx, input.ReceivedBy, "purchase_order.receive", input.OrderID)
	return result, nil
}

// CancelOrder cancels an order that has not received any stock yet.
func (s *Service) CancelOrder(ctx context.Context, orderID, actorID int64) (Order, error) {
	var canceled Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != StatusOrdered {
			return ErrNotCancelable
		}
		if err := tx.SetOrderStatus(ctx, orderID, StatusCanceled); err != nil {
			return err
		}
		order.Status = StatusCanceled
		canceled = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.auditAction(ctx, actorID, "purchase_order.cancel", orderID)
	return canceled, nil
}

func (s *Service) auditAction(ctx context.Context, actorID int64, action string, orderID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(orderID, 10),
		At:       s.clock.Now(),
	})
}
