package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PGPolicyStore reads credit policies from PostgreSQL.
type PGPolicyStore struct {
	pool *pgxpool.Pool
}

// NewPolicyStore constructs PGPolicyStore.
func NewPolicyStore(pool *pgxpool.Pool) *PGPolicyStore {
	return &PGPolicyStore{pool: pool}
}

const policyColumns = `profile, allow_credit, max_installments, max_sale_amount,
	max_percentage_of_limit, max_delay_days, max_open_invoices`

func scanPolicy(row pgx.Row) (Policy, error) {
	var (
		p         Policy
		maxAmount decimal.NullDecimal
	)
	err := row.Scan(&p.Profile, &p.AllowCredit, &p.MaxInstallments, &maxAmount,
		&p.MaxPercentOfLimit, &p.MaxDelayDays, &p.MaxOpenInvoices)
	if err != nil {
		return Policy{}, err
	}
	if maxAmount.Valid {
		p.MaxSaleAmount = &maxAmount.Decimal
	}
	return p, nil
}

// PolicyFor returns the policy for a profile, falling back to BRONZE
// when the profile has no row.
func (s *PGPolicyStore) PolicyFor(ctx context.Context, profile Profile) (Policy, error) {
	if !profile.Valid() {
		profile = ProfileBronze
	}
	policy, err := s.get(ctx, profile)
	if errors.Is(err, pgx.ErrNoRows) && profile != ProfileBronze {
		policy, err = s.get(ctx, ProfileBronze)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return Policy{}, ErrPolicyNotFound
	}
	if err != nil {
		return Policy{}, fmt.Errorf("credit: load policy: %w", err)
	}
	return policy, nil
}

func (s *PGPolicyStore) get(ctx context.Context, profile Profile) (Policy, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+policyColumns+` FROM credit_policies WHERE profile = $1`, profile)
	return scanPolicy(row)
}

// List returns all policies ordered by tier strictness.
func (s *PGPolicyStore) List(ctx context.Context) ([]Policy, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+policyColumns+` FROM credit_policies
		ORDER BY array_position(ARRAY['BRONZE','SILVER','GOLD','DIAMOND'], profile)`)
	if err != nil {
		return nil, fmt.Errorf("credit: list policies: %w", err)
	}
	defer rows.Close()

	var out []Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert writes one policy row.
func (s *PGPolicyStore) Upsert(ctx context.Context, p Policy) error {
	if !p.Profile.Valid() {
		return ErrInvalidProfile
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO credit_policies
			(profile, allow_credit, max_installments, max_sale_amount,
			 max_percentage_of_limit, max_delay_days, max_open_invoices)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (profile) DO UPDATE SET
			allow_credit = EXCLUDED.allow_credit,
			max_installments = EXCLUDED.max_installments,
			max_sale_amount = EXCLUDED.max_sale_amount,
			max_percentage_of_limit = EXCLUDED.max_percentage_of_limit,
			max_delay_days = EXCLUDED.max_delay_days,
			max_open_invoices = EXCLUDED.max_open_invoices`,
		p.Profile, p.AllowCredit, p.MaxInstallments, p.MaxSaleAmount,
		p.MaxPercentOfLimit, p.MaxDelayDays, p.MaxOpenInvoices)
	return err
}

// SeedDefaults inserts the default tier set, leaving existing rows
// untouched.
func (s *PGPolicyStore) SeedDefaults(ctx context.Context) error {
	for _, p := range DefaultPolicies() {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO credit_policies
				(profile, allow_credit, max_installments, max_sale_amount,
				 max_percentage_of_limit, max_delay_days, max_open_invoices)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (profile) DO NOTHING`,
			p.Profile, p.AllowCredit, p.MaxInstallments, p.MaxSaleAmount,
			p.MaxPercentOfLimit, p.MaxDelayDays, p.MaxOpenInvoices)
		if err != nil {
			return fmt.Errorf("credit: seed policies: %w", err)
		}
	}
	return nil
}

// StaticPolicyStore serves a fixed policy set from memory.
type StaticPolicyStore struct {
	byProfile map[Profile]Policy
}

// NewStaticPolicyStore builds a store from the given policies.
func NewStaticPolicyStore(policies []Policy) *StaticPolicyStore {
	m := make(map[Profile]Policy, len(policies))
	for _, p := range policies {
		m[p.Profile] = p
	}
	return &StaticPolicyStore{byProfile: m}
}

// PolicyFor resolves a profile with BRONZE fallback.
func (s *StaticPolicyStore) PolicyFor(_ context.Context, profile Profile) (Policy, error) {
	if p, ok := s.byProfile[profile]; ok {
		return p, nil
	}
	if p, ok := s.byProfile[ProfileBronze]; ok {
		return p, nil
	}
	return Policy{}, ErrPolicyNotFound
}
