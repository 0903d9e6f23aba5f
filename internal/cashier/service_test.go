package cashier

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
	sessions  map[int64]*Session
	movements []Movement
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: map[int64]*Session{}}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) GetSessionForUpdate(_ context.Context, sessionID int64) (Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return *s, nil
}

func (f *fakeRepo) HasOpenSession(_ context.Context, registerID, userID int64) (bool, error) {
	for _, s := range f.sessions {
		if s.Status == SessionOpen && (s.RegisterID == registerID || s.OpenedBy == userID) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) InsertSession(_ context.Context, registerID, openedBy int64, opening decimal.Decimal) (Session, error) {
	f.nextID++
	s := Session{
		ID: f.nextID, RegisterID: registerID, OpenedBy: openedBy,
		OpeningAmount: opening, Status: SessionOpen, OpenedAt: testNow,
	}
	f.sessions[s.ID] = &s
	return s, nil
}

func (f *fakeRepo) InsertMovement(_ context.Context, m Movement) (Movement, error) {
	f.nextID++
	m.ID = f.nextID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = testNow
	}
	f.movements = append(f.movements, m)
	return m, nil
}

func (f *fakeRepo) SessionTotals(_ context.Context, sessionID int64) (Totals, error) {
	totals := Totals{
		Sales:       decimal.Zero,
		Supplies:    decimal.Zero,
		Withdrawals: decimal.Zero,
		Refunds:     decimal.Zero,
		Adjustments: decimal.Zero,
	}
	for _, m := range f.movements {
		if m.SessionID != sessionID {
			continue
		}
		switch m.Type {
		case MovementSale:
			totals.Sales = totals.Sales.Add(m.Amount)
		case MovementSupply:
			totals.Supplies = totals.Supplies.Add(m.Amount)
		case MovementWithdrawal:
			totals.Withdrawals = totals.Withdrawals.Add(m.Amount)
		case MovementRefund:
			totals.Refunds = totals.Refunds.Add(m.Amount)
		case MovementAdjustment:
			totals.Adjustments = totals.Adjustments.Add(m.Amount)
		}
	}
	return totals, nil
}

func (f *fakeRepo) CloseSession(_ context.Context, sessionID int64, closing, expected, difference decimal.Decimal, consistent bool, notes string) (Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	now := testNow
	s.Status = SessionClosed
	s.ClosedAt = &now
	s.ClosingAmount = &closing
	s.ExpectedAmount = &expected
	s.Difference = &difference
	s.IsConsistent = &consistent
	s.Notes = notes
	return *s, nil
}

func (f *fakeRepo) Get(_ context.Context, sessionID int64) (Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return *s, nil
}

func (f *fakeRepo) List(_ context.Context, registerID int64, _, _ int) ([]Session, error) {
	var out []Session
	for _, s := range f.sessions {
		if registerID != 0 && s.RegisterID != registerID {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeRepo) Totals(ctx context.Context, sessionID int64) (Totals, error) {
	return f.SessionTotals(ctx, sessionID)
}

func (f *fakeRepo) Movements(_ context.Context, sessionID int64) ([]Movement, error) {
	var out []Movement
	for _, m := range f.movements {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testService(t *testing.T, repo *fakeRepo) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return NewService(logger, repo, nil, shared.FixedClock{At: testNow})
}

func record(t *testing.T, svc *Service, sessionID int64, mt MovementType, amount int64, reason string) {
	t.Helper()
	_, err := svc.RecordMovement(context.Background(), MovementInput{
		SessionID: sessionID, Type: mt, Amount: decimal.NewFromInt(amount),
		Reason: reason, CreatedBy: 7,
	})
	require.NoError(t, err)
}

func TestOpenRejectsSecondSession(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo)

	_, err := svc.Open(context.Background(), 1, 7, decimal.NewFromInt(100))
	require.NoError(t, err)

	// Same register, different user.
	_, err = svc.Open(context.Background(), 1, 8, decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrAlreadyOpen)

	// Same user, different register.
	_, err = svc.Open(context.Background(), 2, 7, decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrAlreadyOpen)

	// Different user and register is fine.
	_, err = svc.Open(context.Background(), 2, 8, decimal.NewFromInt(100))
	require.NoError(t, err)
}

func TestOpenRejectsNegativeFloat(t *testing.T) {
	svc := testService(t, newFakeRepo())
	_, err := svc.Open(context.Background(), 1, 7, decimal.NewFromInt(-1))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRecordMovementValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo)
	session, err := svc.Open(context.Background(), 1, 7, decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = svc.RecordMovement(context.Background(), MovementInput{
		SessionID: session.ID, Type: MovementType("bribe"), Amount: decimal.NewFromInt(10), CreatedBy: 7,
	})
	require.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.RecordMovement(context.Background(), MovementInput{
		SessionID: session.ID, Type: MovementSupply, Amount: decimal.Zero, CreatedBy: 7,
	})
	require.ErrorIs(t, err, ErrInvalidAmount)

	// Withdrawals need a reason; supplies do not.
	_, err = svc.RecordMovement(context.Background(), MovementInput{
		SessionID: session.ID, Type: MovementWithdrawal, Amount: decimal.NewFromInt(10), Reason: "  ", CreatedBy: 7,
	})
	require.ErrorIs(t, err, ErrReasonRequired)

	_, err = svc.RecordMovement(context.Background(), MovementInput{
		SessionID: session.ID, Type: MovementSupply, Amount: decimal.NewFromInt(10), CreatedBy: 7,
	})
	require.NoError(t, err)
}

func TestRecordMovementRejectsClosedSession(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo)
	session, err := svc.Open(context.Background(), 1, 7, decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = svc.Close(context.Background(), session.ID, decimal.NewFromInt(100), 7, "")
	require.NoError(t, err)

	_, err = svc.RecordMovement(context.Background(), MovementInput{
		SessionID: session.ID, Type: MovementSupply, Amount: decimal.NewFromInt(10), CreatedBy: 7,
	})
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestCloseComputesExpectedAndDifference(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo)
	session, err := svc.Open(context.Background(), 1, 7, decimal.NewFromInt(100))
	require.NoError(t, err)

	record(t, svc, session.ID, MovementSale, 250, "")
	record(t, svc, session.ID, MovementSupply, 50, "")
	record(t, svc, session.ID, MovementWithdrawal, 80, "bank deposit")
	record(t, svc, session.ID, MovementRefund, 20, "damaged goods")
	record(t, svc, session.ID, MovementAdjustment, 5, "float recount")

	// 100 + 250 + 50 - 80 - 20 + 5 = 305.
	closed, err := svc.Close(context.Background(), session.ID, decimal.NewFromInt(305), 7, "")
	require.NoError(t, err)
	require.Equal(t, SessionClosed, closed.Status)
	require.True(t, closed.ExpectedAmount.Equal(decimal.NewFromInt(305)))
	require.True(t, closed.Difference.IsZero())
	require.NotNil(t, closed.IsConsistent)
	require.True(t, *closed.IsConsistent)
}

func TestCloseFlagsDiscrepancyBeyondTolerance(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo)
	session, err := svc.Open(context.Background(), 1, 7, decimal.NewFromInt(100))
	require.NoError(t, err)
	record(t, svc, session.ID, MovementSale, 100, "")

	closed, err := svc.Close(context.Background(), session.ID, decimal.RequireFromString("199.50"), 7, "short")
	require.NoError(t, err)
	require.True(t, closed.Difference.Equal(decimal.RequireFromString("-0.50")))
	require.False(t, *closed.IsConsistent)
}

func TestCloseToleratesOneCent(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo)
	session, err := svc.Open(context.Background(), 1, 7, decimal.NewFromInt(100))
	require.NoError(t, err)

	closed, err := svc.Close(context.Background(), session.ID, decimal.RequireFromString("100.01"), 7, "")
	require.NoError(t, err)
	require.True(t, *closed.IsConsistent)
}

func TestCloseRejectsClosedSession(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo)
	session, err := svc.Open(context.Background(), 1, 7, decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = svc.Close(context.Background(), session.ID, decimal.NewFromInt(100), 7, "")
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), session.ID, decimal.NewFromInt(100), 7, "")
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestReportAggregatesSession(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo)
	session, err := svc.Open(context.Background(), 1, 7, decimal.NewFromInt(100))
	require.NoError(t, err)
	record(t, svc, session.ID, MovementSale, 40, "")
	record(t, svc, session.ID, MovementSale, 60, "")
	record(t, svc, session.ID, MovementWithdrawal, 30, "bank deposit")

	report, err := svc.Report(context.Background(), session.ID)
	require.NoError(t, err)
	require.True(t, report.Totals.Sales.Equal(decimal.NewFromInt(100)))
	require.True(t, report.Totals.Withdrawals.Equal(decimal.NewFromInt(30)))
	require.True(t, report.Expected.Equal(decimal.NewFromInt(170)))
	require.Len(t, report.Movements, 3)
}
