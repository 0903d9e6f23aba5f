package credit

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vela-pos/vela/internal/shared"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeLedger struct {
	customer      CustomerCredit
	outstanding   decimal.Decimal
	overdue       OverdueInfo
	paymentEvents int

	scores    map[int64]int
	profiles  map[int64]Profile
	blocked   map[int64]bool
	histories []History
}

func (f *fakeLedger) CustomerCredit(_ context.Context, id int64) (CustomerCredit, error) {
	if f.customer.ID != id {
		return CustomerCredit{}, ErrCustomerNotFound
	}
	return f.customer, nil
}

func (f *fakeLedger) OutstandingAmount(context.Context, int64) (decimal.Decimal, error) {
	return f.outstanding, nil
}

func (f *fakeLedger) Overdue(context.Context, int64) (OverdueInfo, error) {
	return f.overdue, nil
}

func (f *fakeLedger) PaymentEventCount(context.Context, int64) (int, error) {
	return f.paymentEvents, nil
}

func (f *fakeLedger) UpdateCustomerScore(_ context.Context, id int64, score int, profile Profile, blocked bool) error {
	if f.scores == nil {
		f.scores = map[int64]int{}
		f.profiles = map[int64]Profile{}
		f.blocked = map[int64]bool{}
	}
	f.scores[id] = score
	f.profiles[id] = profile
	f.blocked[id] = blocked
	return nil
}

func (f *fakeLedger) InsertHistory(_ context.Context, h History) error {
	f.histories = append(f.histories, h)
	return nil
}

func testEngine() *Engine {
	return NewEngine(NewStaticPolicyStore(DefaultPolicies()), shared.FixedClock{At: testNow})
}

func bronzeCustomer() CustomerCredit {
	return CustomerCredit{
		ID:          1,
		Name:        "Acme Retail",
		CreditLimit: decimal.NewFromInt(1000),
		CreditUsed:  decimal.Zero,
		Score:       700,
		Profile:     ProfileBronze,
		CreatedAt:   testNow.AddDate(-1, 0, 0),
	}
}

func TestAssignProfileBoundaries(t *testing.T) {
	cases := []struct {
		score int
		want  Profile
	}{
		{1000, ProfileDiamond},
		{850, ProfileDiamond},
		{849, ProfileGold},
		{700, ProfileGold},
		{699, ProfileSilver},
		{500, ProfileSilver},
		{499, ProfileBronze},
		{0, ProfileBronze},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, AssignProfile(tc.score), "score %d", tc.score)
	}
}

func TestValidateSaleWithinPercentageOfLimit(t *testing.T) {
	engine := testEngine()
	ledger := &fakeLedger{customer: bronzeCustomer()}

	// BRONZE caps usage at 60% of the 1000 limit.
	err := engine.ValidateSale(context.Background(), ledger, 1, decimal.NewFromInt(500), 1)
	require.NoError(t, err)

	err = engine.ValidateSale(context.Background(), ledger, 1, decimal.NewFromInt(700), 1)
	var policyErr *shared.PolicyError
	require.ErrorAs(t, err, &policyErr)
	require.Equal(t, "credit_limit", policyErr.Rule)
}

func TestValidateSaleBoundaryIsInclusive(t *testing.T) {
	engine := testEngine()
	ledger := &fakeLedger{customer: bronzeCustomer()}

	err := engine.ValidateSale(context.Background(), ledger, 1, decimal.NewFromInt(600), 1)
	require.NoError(t, err)

	err = engine.ValidateSale(context.Background(), ledger, 1, decimal.RequireFromString("600.01"), 1)
	require.Error(t, err)
}

func TestValidateSaleCountsOutstanding(t *testing.T) {
	engine := testEngine()
	ledger := &fakeLedger{
		customer:    bronzeCustomer(),
		outstanding: decimal.NewFromInt(400),
	}

	err := engine.ValidateSale(context.Background(), ledger, 1, decimal.NewFromInt(200), 1)
	require.NoError(t, err)

	err = engine.ValidateSale(context.Background(), ledger, 1, decimal.NewFromInt(201), 1)
	var policyErr *shared.PolicyError
	require.ErrorAs(t, err, &policyErr)
	require.Equal(t, "credit_limit", policyErr.Rule)
}

func TestValidateSaleInstallmentCap(t *testing.T) {
	engine := testEngine()
	ledger := &fakeLedger{customer: bronzeCustomer()}

	err := engine.ValidateSale(context.Background(), ledger, 1, decimal.NewFromInt(100), 4)
	var policyErr *shared.PolicyError
	require.ErrorAs(t, err, &policyErr)
	require.Equal(t, "max_installments", policyErr.Rule)

	err = engine.ValidateSale(context.Background(), ledger, 1, decimal.NewFromInt(100), 3)
	require.NoError(t, err)
}

func TestValidateSaleMaxAmountPerProfile(t *testing.T) {
	engine := testEngine()
	customer := bronzeCustomer()
	customer.CreditLimit = decimal.NewFromInt(100000)
	ledger := &fakeLedger{customer: customer}

	err := engine.ValidateSale(context.Background(), ledger, 1, decimal.NewFromInt(5001), 1)
	var policyErr *shared.PolicyError
	require.ErrorAs(t, err, &policyErr)
	require.Equal(t, "max_sale_amount", policyErr.Rule)
}

func TestValidateSaleBlockedGateFiresFirst(t *testing.T) {
	engine := testEngine()
	customer := bronzeCustomer()
	customer.Score = 200
	// Everything else would also fail; the blocked gate must win.
	ledger := &fakeLedger{
		customer:    customer,
		outstanding: decimal.NewFromInt(2000),
		overdue:     OverdueInfo{Count: 3, MaxDays: 90},
	}

	err := engine.ValidateSale(context.Background(), ledger, 1, decimal.NewFromInt(10000), 99)
	var policyErr *shared.PolicyError
	require.ErrorAs(t, err, &policyErr)
	require.Equal(t, "credit_blocked", policyErr.Rule)
}

func TestValidateSaleOverdueTolerance(t *testing.T) {
	engine := testEngine()
	ledger := &fakeLedger{
		customer: bronzeCustomer(),
		overdue:  OverdueInfo{Count: 1, MaxDays: 11},
	}

	// BRONZE tolerates up to 10 days of delay.
	err := engine.ValidateSale(context.Background(), ledger, 1, decimal.NewFromInt(100), 1)
	var policyErr *shared.PolicyError
	require.ErrorAs(t, err, &policyErr)
	require.Equal(t, "overdue", policyErr.Rule)

	ledger.overdue = OverdueInfo{Count: 1, MaxDays: 10}
	require.NoError(t, engine.ValidateSale(context.Background(), ledger, 1, decimal.NewFromInt(100), 1))
}

func TestValidateSaleUnknownCustomer(t *testing.T) {
	engine := testEngine()
	ledger := &fakeLedger{customer: bronzeCustomer()}

	err := engine.ValidateSale(context.Background(), ledger, 42, decimal.NewFromInt(100), 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestScoreBaseline(t *testing.T) {
	engine := testEngine()
	ledger := &fakeLedger{customer: bronzeCustomer()}

	score, err := engine.Score(context.Background(), ledger, 1)
	require.NoError(t, err)
	require.Equal(t, 500, score)
}

func TestScoreUsageTiers(t *testing.T) {
	engine := testEngine()
	cases := []struct {
		outstanding int64
		want        int
	}{
		{500, 500},  // exactly 50%, no penalty
		{501, 440},  // >50%
		{701, 380},  // >70%
		{901, 300},  // >90%
	}
	for _, tc := range cases {
		ledger := &fakeLedger{
			customer:    bronzeCustomer(),
			outstanding: decimal.NewFromInt(tc.outstanding),
		}
		score, err := engine.Score(context.Background(), ledger, 1)
		require.NoError(t, err)
		require.Equal(t, tc.want, score, "outstanding %d", tc.outstanding)
	}
}

func TestScoreOverduePenaltyAndClamp(t *testing.T) {
	engine := testEngine()
	ledger := &fakeLedger{
		customer:    bronzeCustomer(),
		outstanding: decimal.NewFromInt(950),
		overdue:     OverdueInfo{Count: 10, MaxDays: 400},
	}

	// 500 - 200 - 250 - 120 clamps at zero.
	score, err := engine.Score(context.Background(), ledger, 1)
	require.NoError(t, err)
	require.Equal(t, 0, score)
}

func TestScoreTenureAndPaymentBonuses(t *testing.T) {
	engine := testEngine()

	customer := bronzeCustomer()
	customer.CreatedAt = testNow.AddDate(-6, 0, 0)
	ledger := &fakeLedger{customer: customer, paymentEvents: 50}

	// 500 + 80 tenure + 60 capped payment bonus.
	score, err := engine.Score(context.Background(), ledger, 1)
	require.NoError(t, err)
	require.Equal(t, 640, score)

	customer.CreatedAt = testNow.AddDate(-3, 0, 0)
	ledger = &fakeLedger{customer: customer, paymentEvents: 5}
	score, err = engine.Score(context.Background(), ledger, 1)
	require.NoError(t, err)
	require.Equal(t, 550, score)
}

func TestScoreIsDeterministic(t *testing.T) {
	engine := testEngine()
	ledger := &fakeLedger{
		customer:      bronzeCustomer(),
		outstanding:   decimal.NewFromInt(600),
		overdue:       OverdueInfo{Count: 2, MaxDays: 15},
		paymentEvents: 12,
	}

	first, err := engine.Score(context.Background(), ledger, 1)
	require.NoError(t, err)
	second, err := engine.Score(context.Background(), ledger, 1)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestBlockedGate(t *testing.T) {
	engine := testEngine()
	customer := bronzeCustomer()

	require.False(t, engine.Blocked(customer, decimal.Zero, OverdueInfo{}))

	lowScore := customer
	lowScore.Score = 299
	require.True(t, engine.Blocked(lowScore, decimal.Zero, OverdueInfo{}))

	require.True(t, engine.Blocked(customer, decimal.Zero, OverdueInfo{Count: 1, MaxDays: 61}))
	require.False(t, engine.Blocked(customer, decimal.Zero, OverdueInfo{Count: 1, MaxDays: 60}))

	require.True(t, engine.Blocked(customer, decimal.NewFromInt(1001), OverdueInfo{}))
	require.False(t, engine.Blocked(customer, decimal.NewFromInt(1000), OverdueInfo{}))
}

func TestRecalcAndApplyPersistsTransition(t *testing.T) {
	engine := testEngine()
	customer := bronzeCustomer()
	customer.Score = 300
	customer.CreatedAt = testNow.AddDate(-6, 0, 0)
	ledger := &fakeLedger{customer: customer, paymentEvents: 40}

	result, err := engine.RecalcAndApplyIn(context.Background(), ledger, 1)
	require.NoError(t, err)
	require.Equal(t, 300, result.OldScore)
	require.Equal(t, 640, result.NewScore)
	require.Equal(t, ProfileSilver, result.NewProfile)
	require.False(t, result.Blocked)

	require.Equal(t, 640, ledger.scores[1])
	require.Equal(t, ProfileSilver, ledger.profiles[1])
	require.Len(t, ledger.histories, 1)
	require.Equal(t, EventScoreRecalc, ledger.histories[0].EventType)
}

func TestRecalcAndApplyFlagsBlocked(t *testing.T) {
	engine := testEngine()
	customer := bronzeCustomer()
	ledger := &fakeLedger{
		customer:    customer,
		outstanding: decimal.NewFromInt(950),
		overdue:     OverdueInfo{Count: 10, MaxDays: 400},
	}

	result, err := engine.RecalcAndApplyIn(context.Background(), ledger, 1)
	require.NoError(t, err)
	require.Equal(t, 0, result.NewScore)
	require.Equal(t, ProfileBronze, result.NewProfile)
	require.True(t, result.Blocked)
	require.True(t, ledger.blocked[1])
}

func TestPolicyFallbackToBronze(t *testing.T) {
	store := NewStaticPolicyStore(DefaultPolicies())

	policy, err := store.PolicyFor(context.Background(), Profile("PLATINUM"))
	require.NoError(t, err)
	require.Equal(t, ProfileBronze, policy.Profile)
}

func TestBuildRiskReportOrdering(t *testing.T) {
	rows := []RiskCustomer{
		{CustomerID: 1, Score: 450, RiskLevel: RiskHigh, UsagePercent: 50, MaxDaysOverdue: 5},
		{CustomerID: 2, Score: 250, RiskLevel: RiskVeryHigh, UsagePercent: 90, MaxDaysOverdue: 30},
		{CustomerID: 3, Score: 400, RiskLevel: RiskHigh, UsagePercent: 90, MaxDaysOverdue: 40},
		{CustomerID: 4, Score: 900, RiskLevel: RiskLow},
		{CustomerID: 5, Score: 750, RiskLevel: RiskLow},
	}

	report := BuildRiskReport(rows, testNow)
	require.Equal(t, 5, report.TotalCustomers)

	require.Equal(t, []int64{3, 2, 1}, ids(report.TopRisk))
	require.Equal(t, []int64{4, 5}, ids(report.TopSafe))
}

func TestBuildRiskReportTruncatesToTen(t *testing.T) {
	var rows []RiskCustomer
	for i := range 15 {
		rows = append(rows, RiskCustomer{CustomerID: int64(i + 1), Score: 100, RiskLevel: RiskVeryHigh})
	}
	report := BuildRiskReport(rows, testNow)
	require.Len(t, report.TopRisk, 10)
}

func ids(rows []RiskCustomer) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.CustomerID)
	}
	return out
}
