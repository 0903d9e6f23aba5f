package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	products      map[int64]bool
	movements     []Movement
	allowNegative bool
	nextID        int64
}

func newFakeRepo(productIDs ...int64) *fakeRepo {
	products := make(map[int64]bool, len(productIDs))
	for _, id := range productIDs {
		products[id] = true
	}
	return &fakeRepo{products: products}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := len(f.movements)
	if err := fn(ctx, f); err != nil {
		f.movements = f.movements[:snapshot]
		return err
	}
	return nil
}

func (f *fakeRepo) LockProduct(_ context.Context, productID int64) error {
	if !f.products[productID] {
		return ErrProductNotFound
	}
	return nil
}

func (f *fakeRepo) OnHand(_ context.Context, productID int64) (float64, error) {
	var sum float64
	for _, mv := range f.movements {
		if mv.ProductID == productID {
			sum += SignedQuantity(mv.Type, mv.Quantity)
		}
	}
	return sum, nil
}

func (f *fakeRepo) Apply(ctx context.Context, input MovementInput) (Movement, error) {
	if !input.Type.Valid() {
		return Movement{}, ErrInvalidType
	}
	if input.Type == MovementAdjust {
		if input.Quantity == 0 {
			return Movement{}, ErrInvalidQuantity
		}
	} else if input.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	onHand, _ := f.OnHand(ctx, input.ProductID)
	if onHand+SignedQuantity(input.Type, input.Quantity) < 0 && !f.allowNegative {
		return Movement{}, ErrInsufficientStock
	}
	f.nextID++
	mv := Movement{
		ID:        f.nextID,
		ProductID: input.ProductID,
		Type:      input.Type,
		Quantity:  input.Quantity,
		UnitCost:  input.UnitCost,
		Reason:    input.Reason,
		RefType:   input.RefType,
		CreatedBy: input.CreatedBy,
	}
	f.movements = append(f.movements, mv)
	return mv, nil
}

func (f *fakeRepo) CurrentStock(ctx context.Context, productID int64) (float64, error) {
	return f.OnHand(ctx, productID)
}

func (f *fakeRepo) ListMovements(_ context.Context, filter ListFilter) ([]Movement, error) {
	var out []Movement
	for _, mv := range f.movements {
		if filter.ProductID != 0 && mv.ProductID != filter.ProductID {
			continue
		}
		if filter.Type != "" && mv.Type != filter.Type {
			continue
		}
		out = append(out, mv)
	}
	return out, nil
}

func (f *fakeRepo) Levels(context.Context, bool) ([]Level, error) {
	return nil, nil
}

func TestPostInAndOutKeepsSignedBalance(t *testing.T) {
	repo := newFakeRepo(1)
	svc := NewService(repo, nil)

	_, err := svc.Post(context.Background(), MovementInput{ProductID: 1, Type: MovementIn, Quantity: 10})
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), MovementInput{ProductID: 1, Type: MovementOut, Quantity: 4})
	require.NoError(t, err)

	onHand, err := svc.CurrentStock(context.Background(), 1)
	require.NoError(t, err)
	require.InDelta(t, 6, onHand, 1e-9)
}

func TestPostOutBeyondStockFails(t *testing.T) {
	repo := newFakeRepo(1)
	svc := NewService(repo, nil)

	_, err := svc.Post(context.Background(), MovementInput{ProductID: 1, Type: MovementIn, Quantity: 3})
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), MovementInput{ProductID: 1, Type: MovementOut, Quantity: 5})
	require.ErrorIs(t, err, ErrInsufficientStock)

	onHand, err := svc.CurrentStock(context.Background(), 1)
	require.NoError(t, err)
	require.InDelta(t, 3, onHand, 1e-9)
}

func TestPostNegativeAdjustmentAllowed(t *testing.T) {
	repo := newFakeRepo(1)
	svc := NewService(repo, nil)

	_, err := svc.Post(context.Background(), MovementInput{ProductID: 1, Type: MovementIn, Quantity: 10})
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), MovementInput{ProductID: 1, Type: MovementAdjust, Quantity: -2.5, Reason: "cycle count"})
	require.NoError(t, err)

	onHand, err := svc.CurrentStock(context.Background(), 1)
	require.NoError(t, err)
	require.InDelta(t, 7.5, onHand, 1e-9)
}

func TestAdjustmentRequiresReason(t *testing.T) {
	repo := newFakeRepo(1)
	svc := NewService(repo, nil)

	_, err := svc.Post(context.Background(), MovementInput{ProductID: 1, Type: MovementAdjust, Quantity: -1})
	require.Error(t, err)
}

func TestPostUnknownProductFails(t *testing.T) {
	repo := newFakeRepo(1)
	svc := NewService(repo, nil)

	_, err := svc.Post(context.Background(), MovementInput{ProductID: 99, Type: MovementIn, Quantity: 1})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestPostRejectsInvalidQuantity(t *testing.T) {
	repo := newFakeRepo(1)
	svc := NewService(repo, nil)

	_, err := svc.Post(context.Background(), MovementInput{ProductID: 1, Type: MovementIn, Quantity: -1})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Post(context.Background(), MovementInput{ProductID: 1, Type: MovementAdjust, Quantity: 0, Reason: "noop"})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}
