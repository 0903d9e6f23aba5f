package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/vela-pos/vela/internal/credit"
	jobmetrics "github.com/vela-pos/vela/internal/jobs"
)

// Rescorer rescores every active customer. Satisfied by the credit
// service.
type Rescorer interface {
	RecalcAll(ctx context.Context) ([]credit.RecalcResult, error)
}

// CreditRecalcJob runs the nightly full rescoring pass.
type CreditRecalcJob struct {
	rescorer Rescorer
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
}

// NewCreditRecalcJob constructs the job. metrics may be nil.
func NewCreditRecalcJob(rescorer Rescorer, logger *slog.Logger, metrics *jobmetrics.Metrics) *CreditRecalcJob {
	return &CreditRecalcJob{rescorer: rescorer, logger: logger, metrics: metrics}
}

// Handle processes TaskCreditRecalcAll.
func (j *CreditRecalcJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("credit_recalc_all")
	results, err := j.rescorer.RecalcAll(ctx)
	if err != nil {
		j.logger.Error("credit recalc failed", slog.Any("error", err))
		return tracker.End(err)
	}

	blocked := 0
	for _, r := range results {
		if r.Blocked {
			blocked++
		}
	}
	j.metrics.AddBlocked("credit_recalc_all", blocked)
	j.logger.Info("credit recalc finished",
		slog.Int("customers", len(results)),
		slog.Int("blocked", blocked))
	return tracker.End(nil)
}
