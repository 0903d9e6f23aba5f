package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/shared"
)

// Reader exposes the ledger state the engine needs. Implemented by the
// repository for standalone reads and by transaction wrappers so the
// same rules run inside checkout and payment transactions.
type Reader interface {
	CustomerCredit(ctx context.Context, customerID int64) (CustomerCredit, error)
	OutstandingAmount(ctx context.Context, customerID int64) (decimal.Decimal, error)
	Overdue(ctx context.Context, customerID int64) (OverdueInfo, error)
	PaymentEventCount(ctx context.Context, customerID int64) (int, error)
}

// Writer extends Reader with the mutations recalc applies.
type Writer interface {
	Reader
	UpdateCustomerScore(ctx context.Context, customerID int64, score int, profile Profile, blocked bool) error
	InsertHistory(ctx context.Context, h History) error
}

// PolicyStore resolves the policy for a profile, falling back to
// BRONZE for unknown tiers.
type PolicyStore interface {
	PolicyFor(ctx context.Context, profile Profile) (Policy, error)
}

// Engine evaluates credit rules. All methods are read-then-decide:
// validation never mutates state.
type Engine struct {
	policies PolicyStore
	clock    shared.Clock
}

// NewEngine builds Engine.
func NewEngine(policies PolicyStore, clock shared.Clock) *Engine {
	return &Engine{policies: policies, clock: clock}
}

// Blocked reports the hard credit gate: score below 300, anything more
// than 60 days overdue, or outstanding above the limit.
func (e *Engine) Blocked(customer CustomerCredit, outstanding decimal.Decimal, overdue OverdueInfo) bool {
	if customer.Score < 300 {
		return true
	}
	if overdue.MaxDays > 60 {
		return true
	}
	return outstanding.GreaterThan(customer.CreditLimit)
}

// ValidateSale decides whether a credit sale is acceptable. Checks run
// in a fixed order so the first failing rule is deterministic, and the
// returned error names that rule.
func (e *Engine) ValidateSale(ctx context.Context, r Reader, customerID int64, saleTotal decimal.Decimal, installments int) error {
	customer, err := r.CustomerCredit(ctx, customerID)
	if err != nil {
		return err
	}
	policy, err := e.policies.PolicyFor(ctx, customer.Profile)
	if err != nil {
		return err
	}
	outstanding, err := r.OutstandingAmount(ctx, customerID)
	if err != nil {
		return err
	}
	overdue, err := r.Overdue(ctx, customerID)
	if err != nil {
		return err
	}

	if e.Blocked(customer, outstanding, overdue) {
		return shared.NewPolicyError("credit_blocked", "customer %d is credit blocked", customerID)
	}
	if !policy.AllowCredit {
		return shared.NewPolicyError("allow_credit", "profile %s is not allowed to buy on credit", policy.Profile)
	}
	n := installments
	if n <= 0 {
		n = 1
	}
	if policy.MaxInstallments > 0 && n > policy.MaxInstallments {
		return shared.NewPolicyError("max_installments", "max installments allowed: %d", policy.MaxInstallments)
	}
	if policy.MaxSaleAmount != nil && saleTotal.GreaterThan(*policy.MaxSaleAmount) {
		return shared.NewPolicyError("max_sale_amount", "sale exceeds max amount %s for profile %s", policy.MaxSaleAmount, policy.Profile)
	}
	effectiveLimit := customer.CreditLimit.
		Mul(decimal.NewFromInt(int64(policy.MaxPercentOfLimit))).
		Div(decimal.NewFromInt(100))
	if outstanding.Add(saleTotal).GreaterThan(effectiveLimit) {
		return shared.NewPolicyError("credit_limit",
			"sale of %s plus outstanding %s exceeds effective limit %s",
			saleTotal, outstanding, effectiveLimit)
	}
	if overdue.Count > 0 && overdue.MaxDays > policy.MaxDelayDays {
		return shared.NewPolicyError("overdue", "overdue invoices exceed %d day tolerance", policy.MaxDelayDays)
	}
	if customer.Score < 300 {
		return shared.NewPolicyError("min_score", "credit score %d is too low", customer.Score)
	}
	return nil
}

// Score recomputes a customer's score from current ledger state. The
// formula is deterministic: the same ledger state yields the same
// score.
func (e *Engine) Score(ctx context.Context, r Reader, customerID int64) (int, error) {
	customer, err := r.CustomerCredit(ctx, customerID)
	if err != nil {
		return 0, err
	}
	outstanding, err := r.OutstandingAmount(ctx, customerID)
	if err != nil {
		return 0, err
	}
	overdue, err := r.Overdue(ctx, customerID)
	if err != nil {
		return 0, err
	}
	paymentEvents, err := r.PaymentEventCount(ctx, customerID)
	if err != nil {
		return 0, err
	}

	score := 500

	if customer.CreditLimit.IsPositive() {
		usage, _ := outstanding.Div(customer.CreditLimit).Float64()
		switch {
		case usage > 0.9:
			score -= 200
		case usage > 0.7:
			score -= 120
		case usage > 0.5:
			score -= 60
		}
	}

	score -= 25 * overdue.Count
	score -= min(overdue.MaxDays, 120)

	tenure := e.clock.Now().Sub(customer.CreatedAt)
	switch {
	case tenure >= 5*365*24*time.Hour:
		score += 80
	case tenure >= 2*365*24*time.Hour:
		score += 40
	}

	score += min(2*paymentEvents, 60)

	if score < 0 {
		score = 0
	}
	if score > 1000 {
		score = 1000
	}
	return score, nil
}

// RecalcAndApplyIn recomputes score, profile and the blocked flag and
// persists them through the given Writer, appending one history row
// for the transition. Callers run it inside their own transaction so
// the recalc commits or rolls back with the triggering operation.
func (e *Engine) RecalcAndApplyIn(ctx context.Context, w Writer, customerID int64) (RecalcResult, error) {
	customer, err := w.CustomerCredit(ctx, customerID)
	if err != nil {
		return RecalcResult{}, err
	}
	newScore, err := e.Score(ctx, w, customerID)
	if err != nil {
		return RecalcResult{}, err
	}
	outstanding, err := w.OutstandingAmount(ctx, customerID)
	if err != nil {
		return RecalcResult{}, err
	}
	overdue, err := w.Overdue(ctx, customerID)
	if err != nil {
		return RecalcResult{}, err
	}

	result := RecalcResult{
		CustomerID: customerID,
		OldScore:   customer.Score,
		NewScore:   newScore,
		OldProfile: customer.Profile,
		NewProfile: AssignProfile(newScore),
	}
	blockedCustomer := customer
	blockedCustomer.Score = newScore
	result.Blocked = e.Blocked(blockedCustomer, outstanding, overdue)

	if err := w.UpdateCustomerScore(ctx, customerID, newScore, result.NewProfile, result.Blocked); err != nil {
		return RecalcResult{}, err
	}
	note := fmt.Sprintf("score %d -> %d, profile %s -> %s",
		result.OldScore, result.NewScore, result.OldProfile, result.NewProfile)
	if err := w.InsertHistory(ctx, History{
		CustomerID: customerID,
		EventType:  EventScoreRecalc,
		Notes:      note,
		CreatedAt:  e.clock.Now(),
	}); err != nil {
		return RecalcResult{}, err
	}
	return result, nil
}
