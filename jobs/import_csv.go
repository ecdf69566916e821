package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockroom/internal/importer"
	jobmetrics "github.com/odyssey-erp/stockroom/internal/jobs"
	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// ImportRunner applies a queued import.
type ImportRunner interface {
	RunTask(ctx context.Context, payload importer.TaskPayload) (importer.Summary, error)
}

// ImportCSVJob runs uploads queued through the async import endpoint.
type ImportCSVJob struct {
	Importer ImportRunner
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewImportCSVJob wires dependencies for the import handler.
func NewImportCSVJob(runner ImportRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *ImportCSVJob {
	return &ImportCSVJob{Importer: runner, Logger: logger, Metrics: metrics}
}

// Handle processes import tasks. Rows before a failure stay committed, so a
// failed import is never retried.
func (j *ImportCSVJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Importer == nil {
		return errors.New("import csv: handler not configured")
	}
	var payload importer.TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskImportCSV)
	defer func() {
		err = tracker.End(err)
	}()

	logger := loggerFor(j.Logger, TaskImportCSV).With(slog.String("file", payload.FileName), slog.String("type", string(payload.Type)))
	summary, err := j.Importer.RunTask(ctx, payload)
	if err != nil {
		if errors.Is(err, httpx.ErrValidation) {
			logger.Warn("import rejected", slog.Any("error", err))
		} else {
			logger.Error("import failed", slog.Any("error", err))
		}
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	logger.Info("import finished", slog.String("import_id", summary.ImportID), slog.Int("imported", summary.Imported))
	return nil
}
