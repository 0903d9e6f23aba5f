package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/vela-pos/vela/internal/jobs"
	"github.com/vela-pos/vela/internal/reports"
)

// ReportWarmer precomputes the cached reports. Satisfied by the
// reports service.
type ReportWarmer interface {
	Dashboard(ctx context.Context) (reports.Dashboard, error)
	DailySales(ctx context.Context, days int) ([]reports.DailySales, error)
}

// ReportsWarmupJob fills the report caches before the store opens.
type ReportsWarmupJob struct {
	warmer  ReportWarmer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewReportsWarmupJob constructs the job. metrics may be nil.
func NewReportsWarmupJob(warmer ReportWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{warmer: warmer, logger: logger, metrics: metrics}
}

// Handle processes TaskReportsWarmup.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("reports_warmup")

	var payload ReportsWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			j.logger.Error("reports warmup: bad payload", slog.Any("error", err))
			return tracker.End(asynq.SkipRetry)
		}
	}
	if len(payload.Windows) == 0 {
		payload.Windows = []int{7, 30}
	}

	if _, err := j.warmer.Dashboard(ctx); err != nil {
		j.logger.Error("reports warmup: dashboard", slog.Any("error", err))
		return tracker.End(err)
	}
	for _, days := range payload.Windows {
		if _, err := j.warmer.DailySales(ctx, days); err != nil {
			j.logger.Error("reports warmup: daily sales",
				slog.Int("days", days), slog.Any("error", err))
			return tracker.End(err)
		}
	}
	j.logger.Info("reports warmup finished", slog.Int("windows", len(payload.Windows)))
	return tracker.End(nil)
}
