package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockroom/internal/importer"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan reports models about to run out.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskSalesWarmup pre-computes the cached sales history windows.
	TaskSalesWarmup = "analytics:sales_warmup"
	// TaskImportCSV applies an uploaded CSV file.
	TaskImportCSV = "import:csv"
)

// ScheduledPayload carries scheduling metadata for cron driven tasks.
type ScheduledPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs the low stock scan task.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	return newScheduledTask(TaskLowStockScan, at)
}

// NewSalesWarmupTask constructs the analytics warmup task.
func NewSalesWarmupTask(at time.Time) (*asynq.Task, error) {
	return newScheduledTask(TaskSalesWarmup, at)
}

// NewImportCSVTask wraps an import payload. Tasks that fail before reaching
// the importer are retried at most three times.
func NewImportCSVTask(payload importer.TaskPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskImportCSV, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

func newScheduledTask(taskType string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

// NewTask builds a task by type name for manual triggering. Import tasks
// need a file and are not accepted here.
func NewTask(taskType string, at time.Time) (*asynq.Task, error) {
	switch taskType {
	case TaskLowStockScan, TaskSalesWarmup:
		return newScheduledTask(taskType, at)
	}
	return nil, ErrUnknownTask
}
