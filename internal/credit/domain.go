package credit

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/shared"
)

// Profile is a named credit risk tier.
type Profile string

const (
	ProfileBronze  Profile = "BRONZE"
	ProfileSilver  Profile = "SILVER"
	ProfileGold    Profile = "GOLD"
	ProfileDiamond Profile = "DIAMOND"
)

// Valid reports whether the profile is a known tier.
func (p Profile) Valid() bool {
	switch p {
	case ProfileBronze, ProfileSilver, ProfileGold, ProfileDiamond:
		return true
	}
	return false
}

// AssignProfile maps a score to its tier. Total order, no overlap.
func AssignProfile(score int) Profile {
	switch {
	case score >= 850:
		return ProfileDiamond
	case score >= 700:
		return ProfileGold
	case score >= 500:
		return ProfileSilver
	default:
		return ProfileBronze
	}
}

// Policy defines the limits attached to one profile. A nil
// MaxSaleAmount means unbounded.
type Policy struct {
	Profile           Profile          `json:"profile"`
	AllowCredit       bool             `json:"allow_credit"`
	MaxInstallments   int              `json:"max_installments"`
	MaxSaleAmount     *decimal.Decimal `json:"max_sale_amount"`
	MaxPercentOfLimit int              `json:"max_percentage_of_limit"`
	MaxDelayDays      int              `json:"max_delay_days"`
	MaxOpenInvoices   int              `json:"max_open_invoices"`
}

// DefaultPolicies returns the seed policy set, one row per tier.
func DefaultPolicies() []Policy {
	amount := func(v string) *decimal.Decimal {
		d := decimal.RequireFromString(v)
		return &d
	}
	return []Policy{
		{Profile: ProfileDiamond, AllowCredit: true, MaxInstallments: 18, MaxSaleAmount: amount("50000"), MaxPercentOfLimit: 100, MaxDelayDays: 30, MaxOpenInvoices: 10},
		{Profile: ProfileGold, AllowCredit: true, MaxInstallments: 12, MaxSaleAmount: amount("30000"), MaxPercentOfLimit: 90, MaxDelayDays: 20, MaxOpenInvoices: 8},
		{Profile: ProfileSilver, AllowCredit: true, MaxInstallments: 6, MaxSaleAmount: amount("15000"), MaxPercentOfLimit: 80, MaxDelayDays: 15, MaxOpenInvoices: 6},
		{Profile: ProfileBronze, AllowCredit: true, MaxInstallments: 3, MaxSaleAmount: amount("5000"), MaxPercentOfLimit: 60, MaxDelayDays: 10, MaxOpenInvoices: 4},
	}
}

// Event types recorded in credit history.
const (
	EventSale          = "sale"
	EventPayment       = "payment"
	EventLimitChange   = "limit_change"
	EventProfileChange = "profile_change"
	EventScoreRecalc   = "score_recalc"
)

// History is one append-only credit event row.
type History struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	EventType  string          `json:"event_type"`
	Amount     decimal.Decimal `json:"amount"`
	Notes      string          `json:"notes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// HistoryFilter narrows history listings.
type HistoryFilter struct {
	EventType string
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// CustomerCredit is the snapshot of a customer the engine reads.
type CustomerCredit struct {
	ID          int64
	Name        string
	CreditLimit decimal.Decimal
	CreditUsed  decimal.Decimal
	Score       int
	Profile     Profile
	Blocked     bool
	CreatedAt   time.Time
}

// OverdueInfo summarizes a customer's overdue receivables.
type OverdueInfo struct {
	Count   int `json:"count_overdue"`
	MaxDays int `json:"max_days_overdue"`
}

// Status is the full credit picture returned by status checks.
type Status struct {
	CustomerID  int64           `json:"customer_id"`
	Name        string          `json:"name"`
	Profile     Profile         `json:"credit_profile"`
	Score       int             `json:"credit_score"`
	Blocked     bool            `json:"is_credit_blocked"`
	LimitTotal  decimal.Decimal `json:"limit_total"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Available   decimal.Decimal `json:"available"`
	Overdue     OverdueInfo     `json:"overdue"`
}

// LimitInfo is the compact limit view.
type LimitInfo struct {
	CustomerID int64           `json:"customer_id"`
	TotalLimit decimal.Decimal `json:"total_limit"`
	Used       decimal.Decimal `json:"used"`
	Available  decimal.Decimal `json:"available"`
}

// ScoreView is the dry-run score preview. ComputedScore is what the
// next recalc would persist; nothing is written.
type ScoreView struct {
	CustomerID      int64     `json:"customer_id"`
	CurrentScore    int       `json:"current_score"`
	ComputedScore   int       `json:"computed_score"`
	CurrentProfile  Profile   `json:"current_profile"`
	ComputedProfile Profile   `json:"computed_profile"`
	RiskLevel       RiskLevel `json:"risk_level"`
}

// PlannedInstallment is one slice of a credit payment plan.
type PlannedInstallment struct {
	Number  int             `json:"number"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate time.Time       `json:"due_date"`
}

// PlanInstallments splits total into n slices due 30 days apart from
// now. The base amount rounds down so the residue the last slice
// absorbs is never negative, and the slices always sum exactly to
// total. Both checkout and the sale simulation build their plans here.
func PlanInstallments(total decimal.Decimal, n int, now time.Time) []PlannedInstallment {
	if n <= 0 {
		n = 1
	}
	base := total.Div(decimal.NewFromInt(int64(n))).RoundFloor(2)
	plan := make([]PlannedInstallment, n)
	for i := range plan {
		amount := base
		if i == n-1 {
			amount = total.Sub(base.Mul(decimal.NewFromInt(int64(n - 1))))
		}
		plan[i] = PlannedInstallment{
			Number:  i + 1,
			Amount:  amount,
			DueDate: now.AddDate(0, 0, 30*(i+1)),
		}
	}
	return plan
}

// Simulation previews a credit sale. A policy rejection is part of the
// result, not an error.
type Simulation struct {
	CustomerID   int64                  `json:"customer_id"`
	SaleTotal    decimal.Decimal        `json:"sale_total"`
	Approved     bool                   `json:"approved"`
	Rule         string                 `json:"rule,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
	Installments []PlannedInstallment `json:"installments,omitempty"`
}

// RecalcResult captures one score/profile transition.
type RecalcResult struct {
	CustomerID int64   `json:"customer_id"`
	OldScore   int     `json:"old_score"`
	NewScore   int     `json:"new_score"`
	OldProfile Profile `json:"old_profile"`
	NewProfile Profile `json:"new_profile"`
	Blocked    bool    `json:"is_credit_blocked"`
}

// RiskLevel buckets a score for reporting.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very-high"
)

// LevelForScore maps a score to its risk bucket.
func LevelForScore(score int) RiskLevel {
	switch {
	case score < 300:
		return RiskVeryHigh
	case score < 500:
		return RiskHigh
	case score < 700:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskCustomer is one row of the risk report.
type RiskCustomer struct {
	CustomerID     int64           `json:"customer_id"`
	Name           string          `json:"name"`
	Score          int             `json:"credit_score"`
	Profile        Profile         `json:"profile"`
	RiskLevel      RiskLevel       `json:"risk_level"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	UsagePercent   float64         `json:"usage_percent"`
	MaxDaysOverdue int             `json:"max_days_overdue"`
}

// RiskReport partitions customers into the riskiest and safest tails.
type RiskReport struct {
	GeneratedAt    time.Time      `json:"generated_at"`
	TotalCustomers int            `json:"total_customers"`
	TopRisk        []RiskCustomer `json:"top_risk_customers"`
	TopSafe        []RiskCustomer `json:"top_safe_customers"`
}

// Alert is a fire-and-forget credit notification.
type Alert struct {
	CustomerID int64  `json:"customer_id"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

var (
	ErrCustomerNotFound = fmt.Errorf("credit: customer: %w", shared.ErrNotFound)
	ErrPolicyNotFound   = fmt.Errorf("credit: policy: %w", shared.ErrNotFound)
	ErrInvalidProfile   = fmt.Errorf("credit: invalid profile: %w", shared.ErrValidation)
)
