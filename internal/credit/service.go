package credit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vela-pos/vela/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxWriter) error) error
	ListHistory(ctx context.Context, customerID int64, filter HistoryFilter) ([]History, error)
	CountHistory(ctx context.Context, customerID int64, filter HistoryFilter) (int, error)
	ActiveCustomerIDs(ctx context.Context) ([]int64, error)
	RiskRows(ctx context.Context) ([]RiskCustomer, error)
}

// PolicyAdminPort exposes policy reads and writes for the API surface.
type PolicyAdminPort interface {
	PolicyStore
	List(ctx context.Context) ([]Policy, error)
	Upsert(ctx context.Context, p Policy) error
}

const riskReportCacheKey = "vela:credit:risk_report"

// Service orchestrates the credit engine over persistent state.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	engine   *Engine
	policies PolicyAdminPort
	alerts   AlertSink
	cache    *redis.Client
	cacheTTL time.Duration
	clock    shared.Clock
}

// NewService builds Service. cache may be nil; risk reports are then
// recomputed on every call.
func NewService(logger *slog.Logger, repo RepositoryPort, engine *Engine, policies PolicyAdminPort, alerts AlertSink, cache *redis.Client, cacheTTL time.Duration, clock shared.Clock) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		engine:   engine,
		policies: policies,
		alerts:   alerts,
		cache:    cache,
		cacheTTL: cacheTTL,
		clock:    clock,
	}
}

// Engine returns the underlying rule engine for transactional callers.
func (s *Service) Engine() *Engine {
	return s.engine
}

// CheckStatus returns the full credit picture for one customer.
func (s *Service) CheckStatus(ctx context.Context, customerID int64) (Status, error) {
	customer, err := s.repo.CustomerCredit(ctx, customerID)
	if err != nil {
		return Status{}, err
	}
	outstanding, err := s.repo.OutstandingAmount(ctx, customerID)
	if err != nil {
		return Status{}, err
	}
	overdue, err := s.repo.Overdue(ctx, customerID)
	if err != nil {
		return Status{}, err
	}
	return Status{
		CustomerID:  customer.ID,
		Name:        customer.Name,
		Profile:     customer.Profile,
		Score:       customer.Score,
		Blocked:     s.engine.Blocked(customer, outstanding, overdue),
		LimitTotal:  customer.CreditLimit,
		Outstanding: outstanding,
		Available:   customer.CreditLimit.Sub(outstanding),
		Overdue:     overdue,
	}, nil
}

// GetLimit returns the compact limit view.
func (s *Service) GetLimit(ctx context.Context, customerID int64) (LimitInfo, error) {
	customer, err := s.repo.CustomerCredit(ctx, customerID)
	if err != nil {
		return LimitInfo{}, err
	}
	outstanding, err := s.repo.OutstandingAmount(ctx, customerID)
	if err != nil {
		return LimitInfo{}, err
	}
	return LimitInfo{
		CustomerID: customer.ID,
		TotalLimit: customer.CreditLimit,
		Used:       outstanding,
		Available:  customer.CreditLimit.Sub(outstanding),
	}, nil
}

// ValidateSale runs the rule chain without mutating anything.
func (s *Service) ValidateSale(ctx context.Context, customerID int64, saleTotal decimal.Decimal, installments int) error {
	return s.engine.ValidateSale(ctx, s.repo, customerID, saleTotal, installments)
}

// SimulateSale previews a credit sale: the validation verdict plus the
// installment plan the checkout would create. Policy rejections come
// back inside the Simulation; only infrastructure failures error.
func (s *Service) SimulateSale(ctx context.Context, customerID int64, saleTotal decimal.Decimal, installments int) (Simulation, error) {
	sim := Simulation{CustomerID: customerID, SaleTotal: saleTotal}
	if err := s.engine.ValidateSale(ctx, s.repo, customerID, saleTotal, installments); err != nil {
		var policyErr *shared.PolicyError
		if errors.As(err, &policyErr) {
			sim.Rule = policyErr.Rule
			sim.Reason = policyErr.Reason
			return sim, nil
		}
		return Simulation{}, err
	}
	sim.Approved = true
	sim.Installments = PlanInstallments(saleTotal, installments, s.clock.Now())
	return sim, nil
}

// PreviewScore computes the score a recalc would persist, without
// applying it.
func (s *Service) PreviewScore(ctx context.Context, customerID int64) (ScoreView, error) {
	customer, err := s.repo.CustomerCredit(ctx, customerID)
	if err != nil {
		return ScoreView{}, err
	}
	computed, err := s.engine.Score(ctx, s.repo, customerID)
	if err != nil {
		return ScoreView{}, err
	}
	return ScoreView{
		CustomerID:      customerID,
		CurrentScore:    customer.Score,
		ComputedScore:   computed,
		CurrentProfile:  customer.Profile,
		ComputedProfile: AssignProfile(computed),
		RiskLevel:       LevelForScore(computed),
	}, nil
}

// SetCustomLimit overwrites the customer limit, records the change and
// recalculates the score in the same transaction.
func (s *Service) SetCustomLimit(ctx context.Context, customerID int64, newLimit decimal.Decimal, notes string) (RecalcResult, error) {
	if newLimit.IsNegative() {
		return RecalcResult{}, shared.NewPolicyError("credit_limit", "credit limit must be >= 0")
	}
	var result RecalcResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxWriter) error {
		if err := tx.LockCustomer(ctx, customerID); err != nil {
			return err
		}
		if err := tx.SetCreditLimit(ctx, customerID, newLimit); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, History{
			CustomerID: customerID,
			EventType:  EventLimitChange,
			Amount:     newLimit,
			Notes:      notes,
			CreatedAt:  s.clock.Now(),
		}); err != nil {
			return err
		}
		var err error
		result, err = s.engine.RecalcAndApplyIn(ctx, tx, customerID)
		return err
	})
	if err != nil {
		return RecalcResult{}, err
	}
	s.emitIfBlocked(ctx, result)
	return result, nil
}

// ApplyProfile manually overrides the customer profile.
func (s *Service) ApplyProfile(ctx context.Context, customerID int64, profile Profile, notes string) error {
	if !profile.Valid() {
		return ErrInvalidProfile
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxWriter) error {
		if err := tx.LockCustomer(ctx, customerID); err != nil {
			return err
		}
		if err := tx.SetProfile(ctx, customerID, profile); err != nil {
			return err
		}
		return tx.InsertHistory(ctx, History{
			CustomerID: customerID,
			EventType:  EventProfileChange,
			Notes:      fmt.Sprintf("profile set to %s: %s", profile, notes),
			CreatedAt:  s.clock.Now(),
		})
	})
}

// RecalcAndApply recomputes one customer's score and profile.
func (s *Service) RecalcAndApply(ctx context.Context, customerID int64) (RecalcResult, error) {
	var result RecalcResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxWriter) error {
		if err := tx.LockCustomer(ctx, customerID); err != nil {
			return err
		}
		var err error
		result, err = s.engine.RecalcAndApplyIn(ctx, tx, customerID)
		return err
	})
	if err != nil {
		return RecalcResult{}, err
	}
	s.emitIfBlocked(ctx, result)
	return result, nil
}

// RecalcAll recomputes every active customer, a bounded number at a
// time. Individual failures abort the batch.
func (s *Service) RecalcAll(ctx context.Context) ([]RecalcResult, error) {
	ids, err := s.repo.ActiveCustomerIDs(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make([]RecalcResult, 0, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range ids {
		g.Go(func() error {
			result, err := s.RecalcAndApply(gctx, id)
			if err != nil {
				return fmt.Errorf("credit: recalc customer %d: %w", id, err)
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// History lists credit events for one customer.
func (s *Service) History(ctx context.Context, customerID int64, filter HistoryFilter, page shared.PageRequest) ([]History, shared.Pagination, error) {
	if _, err := s.repo.CustomerCredit(ctx, customerID); err != nil {
		return nil, shared.Pagination{}, err
	}
	filter.Limit = page.Limit()
	filter.Offset = page.Offset()
	items, err := s.repo.ListHistory(ctx, customerID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	total, err := s.repo.CountHistory(ctx, customerID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, total), nil
}

// Policies lists all policy rows.
func (s *Service) Policies(ctx context.Context) ([]Policy, error) {
	return s.policies.List(ctx)
}

// UpsertPolicy writes one policy row and invalidates the risk cache.
func (s *Service) UpsertPolicy(ctx context.Context, p Policy) error {
	if err := s.policies.Upsert(ctx, p); err != nil {
		return err
	}
	s.invalidateRiskCache(ctx)
	return nil
}

// RiskReport partitions customers into the riskiest and safest tails.
// Results are cached briefly since the report scans every customer.
func (s *Service) RiskReport(ctx context.Context) (RiskReport, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, riskReportCacheKey).Bytes()
		if err == nil {
			var cached RiskReport
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
		}
	}

	rows, err := s.repo.RiskRows(ctx)
	if err != nil {
		return RiskReport{}, err
	}
	report := BuildRiskReport(rows, s.clock.Now())

	if s.cache != nil {
		if raw, err := json.Marshal(report); err == nil {
			if err := s.cache.Set(ctx, riskReportCacheKey, raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("risk report cache write failed", slog.Any("error", err))
			}
		}
	}
	return report, nil
}

func (s *Service) invalidateRiskCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, riskReportCacheKey).Err(); err != nil {
		s.logger.Warn("risk report cache invalidation failed", slog.Any("error", err))
	}
}

func (s *Service) emitIfBlocked(ctx context.Context, result RecalcResult) {
	if !result.Blocked || s.alerts == nil {
		return
	}
	s.alerts.Emit(ctx, Alert{
		CustomerID: result.CustomerID,
		Kind:       "credit_blocked",
		Message: fmt.Sprintf("customer %d blocked: score %d, profile %s",
			result.CustomerID, result.NewScore, result.NewProfile),
	})
}
