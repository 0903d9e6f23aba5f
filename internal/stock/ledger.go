package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/vela-pos/vela/internal/platform/db"
	"github.com/vela-pos/vela/internal/shared"
)

// Ledger holds the stock ledger SQL so every transaction that touches
// stock (sales checkout, purchase receipts, manual movements) shares
// the same row locking and balance rules.
type Ledger struct {
	AllowNegative bool
	Clock         shared.Clock
}

// LockProduct acquires a row lock on the product, serializing
// concurrent movements for the same product.
func (l Ledger) LockProduct(ctx context.Context, db db.Queryer, productID int64) error {
	var id int64
	err := db.QueryRow(ctx,
		`SELECT id FROM products WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
		productID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProductNotFound
	}
	return err
}

// OnHand computes current stock as the signed sum of all movements.
func (l Ledger) OnHand(ctx context.Context, db db.Queryer, productID int64) (float64, error) {
	var qty float64
	err := db.QueryRow(ctx, `
		SELECT COALESCE(SUM(
			CASE type WHEN 'OUT' THEN -quantity ELSE quantity END
		), 0)
		FROM stock_movements WHERE product_id = $1`,
		productID,
	).Scan(&qty)
	return qty, err
}

// Apply validates and inserts one movement. The caller must already
// hold the product lock via LockProduct.
func (l Ledger) Apply(ctx context.Context, db db.Queryer, input MovementInput) (Movement, error) {
	if !input.Type.Valid() {
		return Movement{}, ErrInvalidType
	}
	switch input.Type {
	case MovementAdjust:
		if input.Quantity == 0 {
			return Movement{}, ErrInvalidQuantity
		}
	default:
		if input.Quantity <= 0 {
			return Movement{}, ErrInvalidQuantity
		}
	}

	onHand, err := l.OnHand(ctx, db, input.ProductID)
	if err != nil {
		return Movement{}, err
	}
	newQty := onHand + SignedQuantity(input.Type, input.Quantity)
	if newQty < 0 && !l.AllowNegative {
		return Movement{}, ErrInsufficientStock
	}

	mv := Movement{
		ProductID: input.ProductID,
		Type:      input.Type,
		Quantity:  input.Quantity,
		UnitCost:  input.UnitCost,
		Reason:    input.Reason,
		RefType:   input.RefType,
		RefID:     input.RefID,
		CreatedBy: input.CreatedBy,
		CreatedAt: l.Clock.Now(),
	}
	err = db.QueryRow(ctx, `
		INSERT INTO stock_movements
			(product_id, type, quantity, unit_cost, reason, ref_type, ref_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, 0), $8, $9)
		RETURNING id`,
		mv.ProductID, mv.Type, mv.Quantity, mv.UnitCost, mv.Reason,
		mv.RefType, mv.RefID, mv.CreatedBy, mv.CreatedAt,
	).Scan(&mv.ID)
	if err != nil {
		return Movement{}, err
	}
	return mv, nil
}
