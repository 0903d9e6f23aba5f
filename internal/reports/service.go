package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vela-pos/vela/internal/shared"
)

const (
	dashboardCacheKey  = "vela:reports:dashboard"
	dailySalesCacheKey = "vela:reports:daily_sales"
	cashDailyCacheKey  = "vela:reports:cash_daily"
)

// SourcePort abstracts the aggregate queries.
type SourcePort interface {
	Dashboard(ctx context.Context, day time.Time) (Dashboard, error)
	DailySales(ctx context.Context, from, to time.Time) ([]DailySales, error)
	CashDaily(ctx context.Context, day time.Time) (CashDaily, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error)
}

// Service serves cached read models over the aggregate queries.
type Service struct {
	logger   *slog.Logger
	source   SourcePort
	cache    *redis.Client
	cacheTTL time.Duration
	clock    shared.Clock
}

// NewService builds Service. cache may be nil; reports are then
// recomputed on every call.
func NewService(logger *slog.Logger, source SourcePort, cache *redis.Client, cacheTTL time.Duration, clock shared.Clock) *Service {
	return &Service{logger: logger, source: source, cache: cache, cacheTTL: cacheTTL, clock: clock}
}

// Dashboard returns today's operational snapshot.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, dashboardCacheKey).Bytes()
		if err == nil {
			var cached Dashboard
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
		}
	}

	d, err := s.source.Dashboard(ctx, s.clock.Now())
	if err != nil {
		return Dashboard{}, err
	}
	d.GeneratedAt = s.clock.Now()

	s.cacheSet(ctx, dashboardCacheKey, d)
	return d, nil
}

// DailySales returns revenue per day over the window ending now.
func (s *Service) DailySales(ctx context.Context, days int) ([]DailySales, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	key := fmt.Sprintf("%s:%d", dailySalesCacheKey, days)
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var cached []DailySales
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
		}
	}

	to := s.clock.Now()
	out, err := s.source.DailySales(ctx, to.AddDate(0, 0, -days), to)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, key, out)
	return out, nil
}

// CashDaily returns the cash register aggregation for one day. Past
// days are immutable, so they are cached; the current day is not.
func (s *Service) CashDaily(ctx context.Context, day time.Time) (CashDaily, error) {
	if day.IsZero() {
		day = s.clock.Now()
	}
	day = day.Truncate(24 * time.Hour)
	today := s.clock.Now().Truncate(24 * time.Hour)

	key := fmt.Sprintf("%s:%s", cashDailyCacheKey, day.Format("2006-01-02"))
	if s.cache != nil && day.Before(today) {
		raw, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var cached CashDaily
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
		}
	}

	d, err := s.source.CashDaily(ctx, day)
	if err != nil {
		return CashDaily{}, err
	}
	if day.Before(today) {
		s.cacheSet(ctx, key, d)
	}
	return d, nil
}

// TopProducts ranks best sellers over the window ending now.
func (s *Service) TopProducts(ctx context.Context, days, limit int) ([]TopProduct, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	to := s.clock.Now()
	return s.source.TopProducts(ctx, to.AddDate(0, 0, -days), to, limit)
}

// Invalidate drops the cached reports, typically after a bulk import.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	iter := s.cache.Scan(ctx, 0, "vela:reports:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn("report cache invalidation failed", slog.Any("error", err))
		}
	}
}

func (s *Service) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("report cache write failed", slog.Any("error", err))
	}
}
