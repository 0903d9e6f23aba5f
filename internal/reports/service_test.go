package reports

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vela-pos/vela/internal/shared"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	dashboard      Dashboard
	daily          []DailySales
	cashDaily      CashDaily
	top            []TopProduct
	dashboardCalls int
	dailyCalls     int
	cashDailyCalls int
}

func (f *fakeSource) Dashboard(_ context.Context, _ time.Time) (Dashboard, error) {
	f.dashboardCalls++
	return f.dashboard, nil
}

func (f *fakeSource) DailySales(_ context.Context, _, _ time.Time) ([]DailySales, error) {
	f.dailyCalls++
	return f.daily, nil
}

func (f *fakeSource) CashDaily(_ context.Context, day time.Time) (CashDaily, error) {
	f.cashDailyCalls++
	out := f.cashDaily
	out.Day = day
	return out, nil
}

func (f *fakeSource) TopProducts(_ context.Context, _, _ time.Time, limit int) ([]TopProduct, error) {
	if limit < len(f.top) {
		return f.top[:limit], nil
	}
	return f.top, nil
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testService(t *testing.T, source *fakeSource, cache *redis.Client) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return NewService(logger, source, cache, time.Minute, shared.FixedClock{At: testNow})
}

func testCache(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestDashboardServesFromCache(t *testing.T) {
	source := &fakeSource{dashboard: Dashboard{SalesCount: 12, SalesRevenue: decimal.NewFromInt(480)}}
	svc := testService(t, source, testCache(t))

	first, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, first.SalesCount)
	require.Equal(t, testNow, first.GeneratedAt)

	// The source changes, but the cached snapshot is returned.
	source.dashboard.SalesCount = 99
	second, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, second.SalesCount)
	require.Equal(t, 1, source.dashboardCalls)
}

func TestDashboardWithoutCacheRecomputes(t *testing.T) {
	source := &fakeSource{dashboard: Dashboard{SalesCount: 12}}
	svc := testService(t, source, nil)

	_, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	_, err = svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, source.dashboardCalls)
}

func TestDailySalesCachePerWindow(t *testing.T) {
	source := &fakeSource{daily: []DailySales{{Day: testNow, Count: 3, Revenue: decimal.NewFromInt(90)}}}
	svc := testService(t, source, testCache(t))

	_, err := svc.DailySales(context.Background(), 7)
	require.NoError(t, err)
	_, err = svc.DailySales(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, source.dailyCalls)

	// A different window is a different cache entry.
	_, err = svc.DailySales(context.Background(), 30)
	require.NoError(t, err)
	require.Equal(t, 2, source.dailyCalls)
}

func TestInvalidateDropsCachedReports(t *testing.T) {
	source := &fakeSource{dashboard: Dashboard{SalesCount: 12}}
	svc := testService(t, source, testCache(t))

	_, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	svc.Invalidate(context.Background())

	source.dashboard.SalesCount = 99
	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 99, d.SalesCount)
}

func TestTopProductsRespectsLimit(t *testing.T) {
	source := &fakeSource{top: []TopProduct{
		{ProductID: 1, Revenue: decimal.NewFromInt(100)},
		{ProductID: 2, Revenue: decimal.NewFromInt(50)},
		{ProductID: 3, Revenue: decimal.NewFromInt(10)},
	}}
	svc := testService(t, source, nil)

	out, err := svc.TopProducts(context.Background(), 30, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestCashDailyCachesPastDaysOnly(t *testing.T) {
	source := &fakeSource{cashDaily: CashDaily{Sales: decimal.NewFromInt(500), Withdrawals: decimal.NewFromInt(80)}}
	svc := testService(t, source, testCache(t))

	yesterday := testNow.AddDate(0, 0, -1)
	first, err := svc.CashDaily(context.Background(), yesterday)
	require.NoError(t, err)
	require.True(t, first.Sales.Equal(decimal.NewFromInt(500)))

	_, err = svc.CashDaily(context.Background(), yesterday)
	require.NoError(t, err)
	require.Equal(t, 1, source.cashDailyCalls, "closed day is served from cache")

	// The current day keeps changing and must bypass the cache.
	_, err = svc.CashDaily(context.Background(), testNow)
	require.NoError(t, err)
	_, err = svc.CashDaily(context.Background(), testNow)
	require.NoError(t, err)
	require.Equal(t, 3, source.cashDailyCalls)
}

func TestCashDailyDefaultsToToday(t *testing.T) {
	source := &fakeSource{}
	svc := testService(t, source, nil)

	out, err := svc.CashDaily(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, testNow.Truncate(24*time.Hour), out.Day)
}
