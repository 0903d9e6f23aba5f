// Package jobs hosts the Asynq worker, the task definitions and the
// handlers for scheduled back office maintenance.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReceivablesOverdueSweep flips past-due receivables to overdue
	// and recalculates the affected customers.
	TaskReceivablesOverdueSweep = "receivables:overdue_sweep"
	// TaskPayablesOverdueSweep flips past-due supplier payables to
	// overdue.
	TaskPayablesOverdueSweep = "payables:overdue_sweep"
	// TaskCreditRecalcAll rescores every active customer.
	TaskCreditRecalcAll = "credit:recalc_all"
	// TaskReportsWarmup precomputes the cached dashboard reports.
	TaskReportsWarmup = "reports:warmup"
)

// ReportsWarmupPayload controls which sales windows get warmed.
type ReportsWarmupPayload struct {
	Windows []int `json:"windows"`
}

// NewReceivablesOverdueSweepTask constructs the sweep task.
func NewReceivablesOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(TaskReceivablesOverdueSweep, nil)
}

// NewPayablesOverdueSweepTask constructs the payable sweep task.
func NewPayablesOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(TaskPayablesOverdueSweep, nil)
}

// NewCreditRecalcAllTask constructs the full rescoring task.
func NewCreditRecalcAllTask() *asynq.Task {
	return asynq.NewTask(TaskCreditRecalcAll, nil)
}

// NewReportsWarmupTask constructs the report warmup task.
func NewReportsWarmupTask(windows ...int) (*asynq.Task, error) {
	data, err := json.Marshal(ReportsWarmupPayload{Windows: windows})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, data), nil
}
