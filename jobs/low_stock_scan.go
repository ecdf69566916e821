package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockroom/internal/inventory"
	jobmetrics "github.com/odyssey-erp/stockroom/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LowStockSource lists models in the warning state.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]inventory.DashboardRow, error)
}

// LowStockScanJob logs and publishes the models that will run out soon.
type LowStockScanJob struct {
	Inventory LowStockSource
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(source LowStockSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Inventory: source, Logger: logger, Metrics: metrics}
}

// Handle processes low stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Inventory == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload ScheduledPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskLowStockScan)
	defer func() {
		err = tracker.End(err)
	}()

	logger := loggerFor(j.Logger, TaskLowStockScan)
	rows, err := j.Inventory.LowStock(ctx)
	if err != nil {
		logger.Error("load low stock rows", slog.Any("error", err))
		return err
	}
	metricsOrDefault(j.Metrics).SetLowStock(len(rows))
	for _, row := range rows {
		logger.Warn("low stock",
			slog.Int64("model_id", row.ModelID),
			slog.String("product", row.ProductName),
			slog.String("model", row.ModelName),
			slog.Int64("stock", row.StockQuantity),
			slog.Int64("remaining_days", row.RemainingDays),
			slog.Bool("ordered", row.IsOrdered))
	}
	logger.Info("completed low stock scan", slog.Int("items", len(rows)))
	return nil
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

func loggerFor(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}
