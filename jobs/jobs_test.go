package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/vela-pos/vela/internal/credit"
	"github.com/vela-pos/vela/internal/payables"
	"github.com/vela-pos/vela/internal/receivables"
	"github.com/vela-pos/vela/internal/reports"
)

type fakeReceivablesSweeper struct {
	result receivables.SweepResult
	err    error
	calls  int
}

func (f *fakeReceivablesSweeper) RefreshOverdue(context.Context) (receivables.SweepResult, error) {
	f.calls++
	return f.result, f.err
}

type fakePayablesSweeper struct {
	result payables.SweepResult
	calls  int
}

func (f *fakePayablesSweeper) RefreshOverdue(context.Context) (payables.SweepResult, error) {
	f.calls++
	return f.result, nil
}

type fakeRescorer struct {
	results []credit.RecalcResult
	err     error
}

func (f *fakeRescorer) RecalcAll(context.Context) ([]credit.RecalcResult, error) {
	return f.results, f.err
}

type fakeWarmer struct {
	dashboardCalls int
	dailyWindows   []int
}

func (f *fakeWarmer) Dashboard(context.Context) (reports.Dashboard, error) {
	f.dashboardCalls++
	return reports.Dashboard{}, nil
}

func (f *fakeWarmer) DailySales(_ context.Context, days int) ([]reports.DailySales, error) {
	f.dailyWindows = append(f.dailyWindows, days)
	return nil, nil
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, nil))
}

func TestOverdueSweepJobRuns(t *testing.T) {
	sweeper := &fakeReceivablesSweeper{result: receivables.SweepResult{MarkedOverdue: 3, AffectedCustomers: []int64{1, 2}}}
	job := NewOverdueSweepJob(sweeper, testLogger(t), nil)

	err := job.Handle(context.Background(), NewReceivablesOverdueSweepTask())
	require.NoError(t, err)
	require.Equal(t, 1, sweeper.calls)
}

func TestOverdueSweepJobPropagatesError(t *testing.T) {
	boom := errors.New("db down")
	job := NewOverdueSweepJob(&fakeReceivablesSweeper{err: boom}, testLogger(t), nil)

	err := job.Handle(context.Background(), NewReceivablesOverdueSweepTask())
	require.ErrorIs(t, err, boom)
}

func TestPayablesSweepJobRuns(t *testing.T) {
	sweeper := &fakePayablesSweeper{result: payables.SweepResult{MarkedOverdue: 1}}
	job := NewPayablesSweepJob(sweeper, testLogger(t), nil)

	require.NoError(t, job.Handle(context.Background(), NewPayablesOverdueSweepTask()))
	require.Equal(t, 1, sweeper.calls)
}

func TestCreditRecalcJobCountsBlocked(t *testing.T) {
	rescorer := &fakeRescorer{results: []credit.RecalcResult{
		{CustomerID: 1, Blocked: true},
		{CustomerID: 2},
	}}
	job := NewCreditRecalcJob(rescorer, testLogger(t), nil)

	require.NoError(t, job.Handle(context.Background(), NewCreditRecalcAllTask()))
}

func TestReportsWarmupDefaultsWindows(t *testing.T) {
	warmer := &fakeWarmer{}
	job := NewReportsWarmupJob(warmer, testLogger(t), nil)

	task, err := NewReportsWarmupTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, warmer.dashboardCalls)
	require.Equal(t, []int{7, 30}, warmer.dailyWindows)
}

func TestReportsWarmupSkipsRetryOnBadPayload(t *testing.T) {
	job := NewReportsWarmupJob(&fakeWarmer{}, testLogger(t), nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskReportsWarmup, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
