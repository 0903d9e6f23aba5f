package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/vela-pos/vela/internal/jobs"
	"github.com/vela-pos/vela/internal/payables"
	"github.com/vela-pos/vela/internal/receivables"
)

// ReceivablesSweeper marks receivables overdue and cascades the score
// recalculation. Satisfied by the receivables service.
type ReceivablesSweeper interface {
	RefreshOverdue(ctx context.Context) (receivables.SweepResult, error)
}

// PayablesSweeper marks supplier payables overdue. Satisfied by the
// payables service.
type PayablesSweeper interface {
	RefreshOverdue(ctx context.Context) (payables.SweepResult, error)
}

// OverdueSweepJob runs the nightly receivable sweep.
type OverdueSweepJob struct {
	sweeper ReceivablesSweeper
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewOverdueSweepJob constructs the job. metrics may be nil.
func NewOverdueSweepJob(sweeper ReceivablesSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	return &OverdueSweepJob{sweeper: sweeper, logger: logger, metrics: metrics}
}

// Handle processes TaskReceivablesOverdueSweep.
func (j *OverdueSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("receivables_overdue_sweep")
	result, err := j.sweeper.RefreshOverdue(ctx)
	if err != nil {
		j.logger.Error("receivables overdue sweep failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("receivables overdue sweep finished",
		slog.Int("marked", result.MarkedOverdue),
		slog.Int("customers", len(result.AffectedCustomers)))
	return tracker.End(nil)
}

// PayablesSweepJob runs the nightly payable sweep.
type PayablesSweepJob struct {
	sweeper PayablesSweeper
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewPayablesSweepJob constructs the job. metrics may be nil.
func NewPayablesSweepJob(sweeper PayablesSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *PayablesSweepJob {
	return &PayablesSweepJob{sweeper: sweeper, logger: logger, metrics: metrics}
}

// Handle processes TaskPayablesOverdueSweep.
func (j *PayablesSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("payables_overdue_sweep")
	result, err := j.sweeper.RefreshOverdue(ctx)
	if err != nil {
		j.logger.Error("payables overdue sweep failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("payables overdue sweep finished", slog.Int("marked", result.MarkedOverdue))
	return tracker.End(nil)
}
