package payables

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vela-pos/vela/internal/shared"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeRepo struct {
	payables map[int64]*Payable
	payments []Payment
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{payables: map[int64]*Payable{}}
}

func (f *fakeRepo) addPayable(p Payable) {
	pp := p
	f.payables[p.ID] = &pp
}

func (f *fakeRepo) snapshot() *fakeRepo {
	cp := newFakeRepo()
	for id, p := range f.payables {
		pp := *p
		cp.payables[id] = &pp
	}
	cp.payments = append([]Payment(nil), f.payments...)
	cp.nextID = f.nextID
	return cp
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := f.snapshot()
	if err := fn(ctx, f); err != nil {
		f.payables = snap.payables
		f.payments = snap.payments
		f.nextID = snap.nextID
		return err
	}
	return nil
}

func (f *fakeRepo) GetForUpdate(_ context.Context, id int64) (Payable, error) {
	p, ok := f.payables[id]
	if !ok {
		return Payable{}, ErrNotFound
	}
	return *p, nil
}

func (f *fakeRepo) InsertPayment(_ context.Context, p Payment) (Payment, error) {
	f.nextID++
	p.ID = f.nextID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = testNow
	}
	f.payments = append(f.payments, p)
	return p, nil
}

func (f *fakeRepo) ApplyPayment(_ context.Context, id int64, paidAmount decimal.Decimal, status Status, paidAt *time.Time) error {
	p, ok := f.payables[id]
	if !ok {
		return ErrNotFound
	}
	p.PaidAmount = paidAmount
	p.Status = status
	p.PaidAt = paidAt
	return nil
}

func (f *fakeRepo) Create(_ context.Context, input CreateInput) (Payable, error) {
	f.nextID++
	p := Payable{
		ID: f.nextID, SupplierID: input.SupplierID, PurchaseOrderID: input.PurchaseOrderID,
		DueDate: input.DueDate, Amount: input.Amount, PaidAmount: decimal.Zero,
		Status: StatusOpen, Notes: input.Notes, CreatedAt: testNow,
	}
	f.payables[p.ID] = &p
	return p, nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (Payable, error) {
	p, ok := f.payables[id]
	if !ok {
		return Payable{}, ErrNotFound
	}
	return *p, nil
}

func (f *fakeRepo) List(_ context.Context, filter ListFilter) ([]Payable, error) {
	var out []Payable
	for _, p := range f.payables {
		if filter.SupplierID != 0 && p.SupplierID != filter.SupplierID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeRepo) ListPayments(_ context.Context, payableID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range f.payments {
		if p.PayableID == payableID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkOverdue(_ context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	for _, p := range f.payables {
		if p.Status == StatusOpen && p.DueDate.Before(now) {
			p.Status = StatusOverdue
			result.MarkedOverdue++
		}
	}
	return result, nil
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testService(t *testing.T, repo *fakeRepo) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return NewService(logger, repo, shared.FixedClock{At: testNow})
}

func TestPayPartialThenExactlyCovered(t *testing.T) {
	repo := newFakeRepo()
	repo.addPayable(Payable{
		ID: 1, SupplierID: 9, DueDate: testNow.AddDate(0, 1, 0),
		Amount: decimal.NewFromInt(500), PaidAmount: decimal.Zero, Status: StatusOpen,
	})
	svc := testService(t, repo)

	result, err := svc.Pay(context.Background(), 1, decimal.NewFromInt(200), 7)
	require.NoError(t, err)
	require.Equal(t, StatusPartial, result.Payable.Status)
	require.Nil(t, result.Payable.PaidAt)

	// Paying the exact remainder settles it; covering, not exceeding,
	// the amount is enough.
	result, err = svc.Pay(context.Background(), 1, decimal.NewFromInt(300), 7)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, result.Payable.Status)
	require.NotNil(t, result.Payable.PaidAt)
	require.True(t, result.Payable.PaidAmount.Equal(decimal.NewFromInt(500)))
}

func TestPayCapsOverpayment(t *testing.T) {
	repo := newFakeRepo()
	repo.addPayable(Payable{
		ID: 1, SupplierID: 9, Amount: decimal.NewFromInt(100),
		PaidAmount: decimal.NewFromInt(80), Status: StatusPartial,
	})
	svc := testService(t, repo)

	result, err := svc.Pay(context.Background(), 1, decimal.NewFromInt(500), 7)
	require.NoError(t, err)
	require.True(t, result.AppliedAmount.Equal(decimal.NewFromInt(20)))
	require.Equal(t, StatusPaid, result.Payable.Status)
}

func TestPayRejectsSettledAndInvalid(t *testing.T) {
	repo := newFakeRepo()
	paidAt := testNow
	repo.addPayable(Payable{
		ID: 1, SupplierID: 9, Amount: decimal.NewFromInt(100),
		PaidAmount: decimal.NewFromInt(100), Status: StatusPaid, PaidAt: &paidAt,
	})
	repo.addPayable(Payable{ID: 2, SupplierID: 9, Amount: decimal.NewFromInt(100), Status: StatusCanceled})
	svc := testService(t, repo)

	_, err := svc.Pay(context.Background(), 1, decimal.NewFromInt(10), 7)
	require.ErrorIs(t, err, ErrAlreadyPaid)

	_, err = svc.Pay(context.Background(), 2, decimal.NewFromInt(10), 7)
	require.ErrorIs(t, err, ErrCanceled)

	_, err = svc.Pay(context.Background(), 2, decimal.Zero, 7)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Pay(context.Background(), 99, decimal.NewFromInt(10), 7)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, repo.payments)
}

func TestPayOverduePayableStillSettles(t *testing.T) {
	repo := newFakeRepo()
	repo.addPayable(Payable{
		ID: 1, SupplierID: 9, DueDate: testNow.AddDate(0, 0, -10),
		Amount: decimal.NewFromInt(100), Status: StatusOverdue,
	})
	svc := testService(t, repo)

	result, err := svc.Pay(context.Background(), 1, decimal.NewFromInt(100), 7)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, result.Payable.Status)
}

func TestCreateValidatesAmount(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo)

	_, err := svc.Create(context.Background(), CreateInput{SupplierID: 9, Amount: decimal.Zero})
	require.ErrorIs(t, err, ErrInvalidAmount)

	p, err := svc.Create(context.Background(), CreateInput{
		SupplierID: 9, DueDate: testNow.AddDate(0, 1, 0),
		Amount: decimal.NewFromInt(250), Notes: "  freight invoice  ",
	})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, p.Status)
	require.Equal(t, "freight invoice", p.Notes)
}

func TestRefreshOverdueSweeps(t *testing.T) {
	repo := newFakeRepo()
	repo.addPayable(Payable{ID: 1, SupplierID: 9, DueDate: testNow.AddDate(0, 0, -1), Amount: decimal.NewFromInt(50), Status: StatusOpen})
	repo.addPayable(Payable{ID: 2, SupplierID: 9, DueDate: testNow.AddDate(0, 1, 0), Amount: decimal.NewFromInt(50), Status: StatusOpen})
	svc := testService(t, repo)

	result, err := svc.RefreshOverdue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.MarkedOverdue)

	p, err := repo.Get(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, p.Status)
}
