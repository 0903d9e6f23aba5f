package sales

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vela-pos/vela/internal/credit"
	"github.com/vela-pos/vela/internal/receivables"
	"github.com/vela-pos/vela/internal/shared"
	"github.com/vela-pos/vela/internal/stock"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeRepo struct {
	customers     map[int64]*credit.CustomerCredit
	sales         map[int64]*Sale
	items         map[int64][]Item
	payments      []Payment
	receivables   []receivables.Receivable
	histories     []credit.History
	movements     []stock.Movement
	cashMovements []int64
	onHand        map[int64]float64
	nextID        int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		customers: map[int64]*credit.CustomerCredit{},
		sales:     map[int64]*Sale{},
		items:     map[int64][]Item{},
		onHand:    map[int64]float64{},
	}
}

func (f *fakeRepo) addCustomer(c credit.CustomerCredit) {
	cc := c
	f.customers[c.ID] = &cc
}

func (f *fakeRepo) addSale(s Sale, items ...Item) {
	ss := s
	f.sales[s.ID] = &ss
	f.items[s.ID] = append([]Item(nil), items...)
}

func (f *fakeRepo) snapshot() *fakeRepo {
	cp := newFakeRepo()
	for id, c := range f.customers {
		cc := *c
		cp.customers[id] = &cc
	}
	for id, s := range f.sales {
		ss := *s
		cp.sales[id] = &ss
	}
	for id, items := range f.items {
		cp.items[id] = append([]Item(nil), items...)
	}
	for id, qty := range f.onHand {
		cp.onHand[id] = qty
	}
	cp.payments = append([]Payment(nil), f.payments...)
	cp.receivables = append([]receivables.Receivable(nil), f.receivables...)
	cp.histories = append([]credit.History(nil), f.histories...)
	cp.movements = append([]stock.Movement(nil), f.movements...)
	cp.cashMovements = append([]int64(nil), f.cashMovements...)
	cp.nextID = f.nextID
	return cp
}

func (f *fakeRepo) restore(s *fakeRepo) {
	f.customers = s.customers
	f.sales = s.sales
	f.items = s.items
	f.payments = s.payments
	f.receivables = s.receivables
	f.histories = s.histories
	f.movements = s.movements
	f.cashMovements = s.cashMovements
	f.onHand = s.onHand
	f.nextID = s.nextID
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := f.snapshot()
	if err := fn(ctx, f); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeRepo) CustomerCredit(_ context.Context, id int64) (credit.CustomerCredit, error) {
	c, ok := f.customers[id]
	if !ok {
		return credit.CustomerCredit{}, credit.ErrCustomerNotFound
	}
	return *c, nil
}

func (f *fakeRepo) OutstandingAmount(_ context.Context, id int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, r := range f.receivables {
		if r.CustomerID == id && r.Status != receivables.StatusPaid && r.Status != receivables.StatusCanceled {
			sum = sum.Add(r.Remaining())
		}
	}
	return sum, nil
}

func (f *fakeRepo) Overdue(_ context.Context, id int64) (credit.OverdueInfo, error) {
	var info credit.OverdueInfo
	for _, r := range f.receivables {
		if r.CustomerID != id || r.Status == receivables.StatusPaid || r.Status == receivables.StatusCanceled {
			continue
		}
		if r.DueDate.Before(testNow) {
			info.Count++
			days := int(testNow.Sub(r.DueDate).Hours() / 24)
			if days > info.MaxDays {
				info.MaxDays = days
			}
		}
	}
	return info, nil
}

func (f *fakeRepo) PaymentEventCount(_ context.Context, id int64) (int, error) {
	n := 0
	for _, h := range f.histories {
		if h.CustomerID == id && h.EventType == credit.EventPayment {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) UpdateCustomerScore(_ context.Context, id int64, score int, profile credit.Profile, blocked bool) error {
	c, ok := f.customers[id]
	if !ok {
		return credit.ErrCustomerNotFound
	}
	c.Score = score
	c.Profile = profile
	c.Blocked = blocked
	return nil
}

func (f *fakeRepo) InsertHistory(_ context.Context, h credit.History) error {
	f.histories = append(f.histories, h)
	return nil
}

func (f *fakeRepo) LockCustomer(_ context.Context, id int64) error {
	if _, ok := f.customers[id]; !ok {
		return credit.ErrCustomerNotFound
	}
	return nil
}

func (f *fakeRepo) AdjustCreditUsed(_ context.Context, id int64, delta decimal.Decimal) error {
	c, ok := f.customers[id]
	if !ok {
		return credit.ErrCustomerNotFound
	}
	used := c.CreditUsed.Add(delta)
	if used.IsNegative() {
		used = decimal.Zero
	}
	c.CreditUsed = used
	return nil
}

func (f *fakeRepo) LockProduct(_ context.Context, productID int64) error {
	if _, ok := f.onHand[productID]; !ok {
		return stock.ErrProductNotFound
	}
	return nil
}

func (f *fakeRepo) ApplyMovement(_ context.Context, input stock.MovementInput) (stock.Movement, error) {
	delta := stock.SignedQuantity(input.Type, input.Quantity)
	if f.onHand[input.ProductID]+delta < 0 {
		return stock.Movement{}, stock.ErrInsufficientStock
	}
	f.onHand[input.ProductID] += delta
	f.nextID++
	mv := stock.Movement{
		ID:        f.nextID,
		ProductID: input.ProductID,
		Type:      input.Type,
		Quantity:  input.Quantity,
		Reason:    input.Reason,
		RefType:   input.RefType,
		RefID:     input.RefID,
		CreatedBy: input.CreatedBy,
		CreatedAt: testNow,
	}
	f.movements = append(f.movements, mv)
	return mv, nil
}

func (f *fakeRepo) GetSaleForUpdate(_ context.Context, saleID int64) (Sale, error) {
	s, ok := f.sales[saleID]
	if !ok {
		return Sale{}, ErrNotFound
	}
	return *s, nil
}

func (f *fakeRepo) GetItems(_ context.Context, saleID int64) ([]Item, error) {
	return append([]Item(nil), f.items[saleID]...), nil
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

func (f *fakeRepo) SumPayments(_ context.Context, saleID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range f.payments {
		if p.SaleID == saleID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (f *fakeRepo) SetStatus(_ context.Context, saleID int64, status Status) error {
	s, ok := f.sales[saleID]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	return nil
}

func (f *fakeRepo) InsertReceivable(_ context.Context, r receivables.Receivable) (int64, error) {
	f.nextID++
	r.ID = f.nextID
	f.receivables = append(f.receivables, r)
	return r.ID, nil
}

func (f *fakeRepo) CancelReceivables(_ context.Context, saleID int64) (decimal.Decimal, error) {
	outstanding := decimal.Zero
	for i := range f.receivables {
		r := &f.receivables[i]
		if r.SaleID != saleID || r.Status == receivables.StatusPaid || r.Status == receivables.StatusCanceled {
			continue
		}
		outstanding = outstanding.Add(r.Remaining())
		r.Status = receivables.StatusCanceled
	}
	return outstanding, nil
}

func (f *fakeRepo) InsertCashMovement(_ context.Context, sessionID int64, _ decimal.Decimal, _, _ int64) error {
	f.cashMovements = append(f.cashMovements, sessionID)
	return nil
}

func (f *fakeRepo) Create(_ context.Context, customerID *int64, createdBy int64) (Sale, error) {
	f.nextID++
	s := Sale{
		ID: f.nextID, CustomerID: customerID, Status: StatusOpen,
		Total: decimal.Zero, DiscountTotal: decimal.Zero,
		CreatedBy: createdBy, CreatedAt: testNow, UpdatedAt: testNow,
	}
	f.sales[s.ID] = &s
	return s, nil
}

func (f *fakeRepo) Get(_ context.Context, saleID int64) (Sale, error) {
	s, ok := f.sales[saleID]
	if !ok {
		return Sale{}, ErrNotFound
	}
	out := *s
	out.Items = append([]Item(nil), f.items[saleID]...)
	return out, nil
}

func (f *fakeRepo) List(_ context.Context, filter ListFilter) ([]Sale, error) {
	var out []Sale
	for _, s := range f.sales {
		if filter.CustomerID != 0 && (s.CustomerID == nil || *s.CustomerID != filter.CustomerID) {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, *s)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			out = nil
		} else {
			out = out[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeRepo) Count(_ context.Context, filter ListFilter) (int, error) {
	n := 0
	for _, s := range f.sales {
		if filter.CustomerID != 0 && (s.CustomerID == nil || *s.CustomerID != filter.CustomerID) {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		n++
	}
	return n, nil
}

func (f *fakeRepo) AddItem(_ context.Context, saleID, productID int64, qty float64) (Item, error) {
	s, ok := f.sales[saleID]
	if !ok {
		return Item{}, ErrNotFound
	}
	if s.Status != StatusOpen {
		return Item{}, ErrNotOpen
	}
	f.nextID++
	price := decimal.NewFromInt(10)
	item := Item{
		ID: f.nextID, SaleID: saleID, ProductID: productID, Quantity: qty,
		UnitPrice: price, Subtotal: price.Mul(decimal.NewFromFloat(qty)).Round(2),
	}
	f.items[saleID] = append(f.items[saleID], item)
	s.Total = s.Total.Add(item.Subtotal)
	return item, nil
}

func (f *fakeRepo) RemoveItem(_ context.Context, saleID, itemID int64) error {
	s, ok := f.sales[saleID]
	if !ok {
		return ErrNotFound
	}
	items := f.items[saleID]
	for i, it := range items {
		if it.ID == itemID {
			f.items[saleID] = append(items[:i], items[i+1:]...)
			s.Total = s.Total.Sub(it.Subtotal)
			return nil
		}
	}
	return ErrItemNotFound
}

func (f *fakeRepo) SetDiscount(_ context.Context, saleID int64, discount decimal.Decimal) error {
	s, ok := f.sales[saleID]
	if !ok {
		return ErrNotFound
	}
	s.DiscountTotal = discount
	return nil
}

type captureSink struct {
	alerts []credit.Alert
}

func (c *captureSink) Emit(_ context.Context, a credit.Alert) {
	c.alerts = append(c.alerts, a)
}

type fakeIdempotency struct {
	keys map[string]bool
}

func (f *fakeIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if f.keys == nil {
		f.keys = map[string]bool{}
	}
	if f.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *fakeIdempotency) Delete(_ context.Context, key string) error {
	delete(f.keys, key)
	return nil
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testService(t *testing.T, repo *fakeRepo) *Service {
	t.Helper()
	return testServiceWith(t, repo, nil, nil)
}

func testServiceWith(t *testing.T, repo *fakeRepo, sink credit.AlertSink, idem IdempotencyPort) *Service {
	t.Helper()
	clock := shared.FixedClock{At: testNow}
	engine := credit.NewEngine(credit.NewStaticPolicyStore(credit.DefaultPolicies()), clock)
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return NewService(logger, repo, engine, sink, idem, nil, clock)
}

func int64Ptr(v int64) *int64 { return &v }

func seedCashSale(repo *fakeRepo) {
	repo.onHand[100] = 10
	repo.onHand[200] = 5
	repo.addSale(
		Sale{ID: 1, Status: StatusOpen, Total: decimal.NewFromInt(25), DiscountTotal: decimal.Zero, CreatedBy: 7},
		Item{ID: 11, SaleID: 1, ProductID: 100, Quantity: 2, UnitPrice: decimal.NewFromInt(10), Subtotal: decimal.NewFromInt(20)},
		Item{ID: 12, SaleID: 1, ProductID: 200, Quantity: 1, UnitPrice: decimal.NewFromInt(5), Subtotal: decimal.NewFromInt(5)},
	)
}

func seedCreditCustomer(repo *fakeRepo) {
	repo.addCustomer(credit.CustomerCredit{
		ID:          1,
		Name:        "Acme Retail",
		CreditLimit: decimal.NewFromInt(1000),
		CreditUsed:  decimal.Zero,
		Score:       700,
		Profile:     credit.ProfileGold,
		CreatedAt:   testNow.AddDate(-1, 0, 0),
	})
}

func TestCheckoutCashSettlesAndMovesStock(t *testing.T) {
	repo := newFakeRepo()
	seedCashSale(repo)
	svc := testService(t, repo)

	result, err := svc.Checkout(context.Background(), CheckoutInput{
		SaleID: 1, Mode: ModeCash, CashSessionID: 3, ActorID: 7,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, result.Sale.Status)
	require.True(t, result.TotalDue.Equal(decimal.NewFromInt(25)))

	require.Len(t, repo.movements, 2)
	for _, mv := range repo.movements {
		require.Equal(t, stock.MovementOut, mv.Type)
		require.Equal(t, "sale", mv.RefType)
		require.Equal(t, int64(1), mv.RefID)
	}
	require.Equal(t, float64(8), repo.onHand[100])
	require.Equal(t, float64(4), repo.onHand[200])

	require.Len(t, repo.payments, 1)
	require.True(t, repo.payments[0].Amount.Equal(decimal.NewFromInt(25)))
	require.Equal(t, []int64{3}, repo.cashMovements)
}

func TestCheckoutRollsBackOnInsufficientStock(t *testing.T) {
	repo := newFakeRepo()
	seedCashSale(repo)
	repo.onHand[200] = 0
	svc := testService(t, repo)

	_, err := svc.Checkout(context.Background(), CheckoutInput{SaleID: 1, Mode: ModeCash, ActorID: 7})
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	// The first line's movement must not survive the rollback.
	require.Empty(t, repo.movements)
	require.Empty(t, repo.payments)
	require.Equal(t, float64(10), repo.onHand[100])

	sale, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, sale.Status)
}

func TestCheckoutCreditCreatesInstallments(t *testing.T) {
	repo := newFakeRepo()
	seedCreditCustomer(repo)
	repo.onHand[100] = 50
	repo.addSale(
		Sale{ID: 1, CustomerID: int64Ptr(1), Status: StatusOpen, Total: decimal.NewFromInt(300), DiscountTotal: decimal.Zero, CreatedBy: 7},
		Item{ID: 11, SaleID: 1, ProductID: 100, Quantity: 30, UnitPrice: decimal.NewFromInt(10), Subtotal: decimal.NewFromInt(300)},
	)
	svc := testService(t, repo)

	result, err := svc.Checkout(context.Background(), CheckoutInput{
		SaleID: 1, Mode: ModeCredit, Installments: 3, ActorID: 7,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, result.Sale.Status)
	require.Equal(t, 3, result.Installments)

	require.Len(t, repo.receivables, 3)
	sum := decimal.Zero
	for i, r := range repo.receivables {
		require.Equal(t, int64(1), r.CustomerID)
		require.Equal(t, i+1, r.InstallmentNumber)
		require.Equal(t, receivables.StatusOpen, r.Status)
		require.Equal(t, testNow.AddDate(0, 0, 30*(i+1)), r.DueDate)
		require.True(t, r.Amount.Equal(decimal.NewFromInt(100)))
		sum = sum.Add(r.Amount)
	}
	require.True(t, sum.Equal(decimal.NewFromInt(300)))

	c, err := repo.CustomerCredit(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, c.CreditUsed.Equal(decimal.NewFromInt(300)))

	var saleEvents, recalcEvents int
	for _, h := range repo.histories {
		switch h.EventType {
		case credit.EventSale:
			saleEvents++
		case credit.EventScoreRecalc:
			recalcEvents++
		}
	}
	require.Equal(t, 1, saleEvents)
	require.Equal(t, 1, recalcEvents)
}

func TestCheckoutCreditRejectedLeavesNothingBehind(t *testing.T) {
	repo := newFakeRepo()
	seedCreditCustomer(repo)
	repo.onHand[100] = 200
	// GOLD caps exposure at 90 percent of the 1000 limit.
	repo.addSale(
		Sale{ID: 1, CustomerID: int64Ptr(1), Status: StatusOpen, Total: decimal.NewFromInt(950), DiscountTotal: decimal.Zero, CreatedBy: 7},
		Item{ID: 11, SaleID: 1, ProductID: 100, Quantity: 95, UnitPrice: decimal.NewFromInt(10), Subtotal: decimal.NewFromInt(950)},
	)
	svc := testService(t, repo)

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		SaleID: 1, Mode: ModeCredit, Installments: 2, ActorID: 7,
	})
	var policyErr *shared.PolicyError
	require.ErrorAs(t, err, &policyErr)
	require.Equal(t, "credit_limit", policyErr.Rule)

	require.Empty(t, repo.movements)
	require.Empty(t, repo.receivables)
	require.Empty(t, repo.histories)
	require.Equal(t, float64(200), repo.onHand[100])
	require.True(t, repo.customers[1].CreditUsed.IsZero())

	sale, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, sale.Status)
}

func TestCheckoutCreditRequiresCustomer(t *testing.T) {
	repo := newFakeRepo()
	seedCashSale(repo)
	svc := testService(t, repo)

	_, err := svc.Checkout(context.Background(), CheckoutInput{SaleID: 1, Mode: ModeCredit, Installments: 1, ActorID: 7})
	require.ErrorIs(t, err, ErrCustomerRequired)
	require.Empty(t, repo.movements)
}

func TestCheckoutGuardsSaleState(t *testing.T) {
	repo := newFakeRepo()
	repo.addSale(Sale{ID: 1, Status: StatusOpen, Total: decimal.Zero, DiscountTotal: decimal.Zero})
	repo.addSale(Sale{ID: 2, Status: StatusPaid, Total: decimal.NewFromInt(10), DiscountTotal: decimal.Zero})
	repo.addSale(Sale{ID: 3, Status: StatusCanceled, Total: decimal.NewFromInt(10), DiscountTotal: decimal.Zero})
	svc := testService(t, repo)

	_, err := svc.Checkout(context.Background(), CheckoutInput{SaleID: 1, Mode: ModeCash, ActorID: 7})
	require.ErrorIs(t, err, ErrEmptySale)

	_, err = svc.Checkout(context.Background(), CheckoutInput{SaleID: 2, Mode: ModeCash, ActorID: 7})
	require.ErrorIs(t, err, ErrAlreadySettled)

	_, err = svc.Checkout(context.Background(), CheckoutInput{SaleID: 3, Mode: ModeCash, ActorID: 7})
	require.ErrorIs(t, err, ErrAlreadyCanceled)
}

func TestCheckoutIdempotencyKeyBlocksRetry(t *testing.T) {
	repo := newFakeRepo()
	seedCashSale(repo)
	idem := &fakeIdempotency{}
	svc := testServiceWith(t, repo, nil, idem)

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		SaleID: 1, Mode: ModeCash, ActorID: 7, IdempotencyKey: "k-1",
	})
	require.NoError(t, err)

	_, err = svc.Checkout(context.Background(), CheckoutInput{
		SaleID: 1, Mode: ModeCash, ActorID: 7, IdempotencyKey: "k-1",
	})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestCheckoutFailureReleasesIdempotencyKey(t *testing.T) {
	repo := newFakeRepo()
	seedCashSale(repo)
	repo.onHand[200] = 0
	idem := &fakeIdempotency{}
	svc := testServiceWith(t, repo, nil, idem)

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		SaleID: 1, Mode: ModeCash, ActorID: 7, IdempotencyKey: "k-1",
	})
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	// The key is free again after the rollback.
	repo.onHand[200] = 5
	_, err = svc.Checkout(context.Background(), CheckoutInput{
		SaleID: 1, Mode: ModeCash, ActorID: 7, IdempotencyKey: "k-1",
	})
	require.NoError(t, err)
}

func TestCancelPendingReversesEverything(t *testing.T) {
	repo := newFakeRepo()
	seedCreditCustomer(repo)
	repo.onHand[100] = 50
	repo.addSale(
		Sale{ID: 1, CustomerID: int64Ptr(1), Status: StatusOpen, Total: decimal.NewFromInt(300), DiscountTotal: decimal.Zero, CreatedBy: 7},
		Item{ID: 11, SaleID: 1, ProductID: 100, Quantity: 30, UnitPrice: decimal.NewFromInt(10), Subtotal: decimal.NewFromInt(300)},
	)
	svc := testService(t, repo)

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		SaleID: 1, Mode: ModeCredit, Installments: 3, ActorID: 7,
	})
	require.NoError(t, err)
	require.Equal(t, float64(20), repo.onHand[100])

	sale, err := svc.Cancel(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, sale.Status)

	require.Equal(t, float64(50), repo.onHand[100])
	for _, r := range repo.receivables {
		require.Equal(t, receivables.StatusCanceled, r.Status)
	}
	require.True(t, repo.customers[1].CreditUsed.IsZero())
}

func TestCancelOpenSaleSkipsStockReversal(t *testing.T) {
	repo := newFakeRepo()
	seedCashSale(repo)
	svc := testService(t, repo)

	sale, err := svc.Cancel(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, sale.Status)
	require.Empty(t, repo.movements)
}

func TestCancelRejectsSettled(t *testing.T) {
	repo := newFakeRepo()
	repo.addSale(Sale{ID: 1, Status: StatusPaid, Total: decimal.NewFromInt(10), DiscountTotal: decimal.Zero})
	repo.addSale(Sale{ID: 2, Status: StatusCanceled, Total: decimal.NewFromInt(10), DiscountTotal: decimal.Zero})
	svc := testService(t, repo)

	_, err := svc.Cancel(context.Background(), 1, 7)
	require.ErrorIs(t, err, ErrAlreadySettled)
	_, err = svc.Cancel(context.Background(), 2, 7)
	require.ErrorIs(t, err, ErrAlreadyCanceled)
}

func TestApplyPaymentFlipsToPaidWhenCovered(t *testing.T) {
	repo := newFakeRepo()
	repo.addSale(Sale{ID: 1, Status: StatusPending, Total: decimal.NewFromInt(100), DiscountTotal: decimal.NewFromInt(10)})
	svc := testService(t, repo)

	sale, err := svc.ApplyPayment(context.Background(), 1, ModeCard, decimal.NewFromInt(50))
	require.NoError(t, err)
	require.Equal(t, StatusPending, sale.Status)

	// 50 + 40 covers the 90 due after discount.
	sale, err = svc.ApplyPayment(context.Background(), 1, ModeCard, decimal.NewFromInt(40))
	require.NoError(t, err)
	require.Equal(t, StatusPaid, sale.Status)
}

func TestApplyPaymentRejectsInvalid(t *testing.T) {
	repo := newFakeRepo()
	repo.addSale(Sale{ID: 1, Status: StatusPaid, Total: decimal.NewFromInt(10), DiscountTotal: decimal.Zero})
	svc := testService(t, repo)

	_, err := svc.ApplyPayment(context.Background(), 1, ModeCard, decimal.NewFromInt(5))
	require.ErrorIs(t, err, ErrAlreadySettled)

	_, err = svc.ApplyPayment(context.Background(), 1, PaymentMode("voucher"), decimal.NewFromInt(5))
	require.ErrorIs(t, err, ErrInvalidMode)

	_, err = svc.ApplyPayment(context.Background(), 1, ModeCard, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestListPaginatesResults(t *testing.T) {
	repo := newFakeRepo()
	for i := int64(1); i <= 5; i++ {
		repo.addSale(Sale{ID: i, Status: StatusOpen, Total: decimal.Zero, DiscountTotal: decimal.Zero, CreatedBy: 7})
	}
	svc := testService(t, repo)

	items, pagination, err := svc.List(context.Background(), ListFilter{}, shared.NewPageRequest(2, 2))
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, shared.Pagination{Page: 2, PerPage: 2, Total: 5, TotalPages: 3}, pagination)
}

func TestCheckoutCreditSubCentInstallmentsStayNonNegative(t *testing.T) {
	repo := newFakeRepo()
	seedCreditCustomer(repo)
	repo.onHand[100] = 50
	repo.addSale(
		Sale{ID: 1, CustomerID: int64Ptr(1), Status: StatusOpen, Total: decimal.RequireFromString("0.05"), DiscountTotal: decimal.Zero, CreatedBy: 7},
		Item{ID: 11, SaleID: 1, ProductID: 100, Quantity: 1, UnitPrice: decimal.RequireFromString("0.05"), Subtotal: decimal.RequireFromString("0.05")},
	)
	svc := testService(t, repo)

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		SaleID: 1, Mode: ModeCredit, Installments: 7, ActorID: 7,
	})
	require.NoError(t, err)

	require.Len(t, repo.receivables, 7)
	sum := decimal.Zero
	for _, r := range repo.receivables {
		require.False(t, r.Amount.IsNegative(), "installment %d is %s", r.InstallmentNumber, r.Amount)
		sum = sum.Add(r.Amount)
	}
	require.True(t, sum.Equal(decimal.RequireFromString("0.05")))
}
