package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockroom/internal/analytics"
	jobmetrics "github.com/odyssey-erp/stockroom/internal/jobs"
)

// WarmupRanges lists the windows pre-computed by the warmup.
var WarmupRanges = []string{analytics.Range7D, analytics.Range30D, analytics.Range90D}

// SalesHistorySource loads the cached sales history view.
type SalesHistorySource interface {
	SalesHistory(ctx context.Context, q analytics.RangeQuery, rankLimit int) (analytics.SalesHistory, error)
}

// SalesWarmupJob pre-populates the analytics cache for the common windows.
type SalesWarmupJob struct {
	Analytics SalesHistorySource
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewSalesWarmupJob wires dependencies for the warmup handler.
func NewSalesWarmupJob(source SalesHistorySource, logger *slog.Logger, metrics *jobmetrics.Metrics) *SalesWarmupJob {
	return &SalesWarmupJob{
		Analytics: source,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes analytics warmup tasks.
func (j *SalesWarmupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Analytics == nil {
		return errors.New("sales warmup: handler not configured")
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskSalesWarmup)
	defer func() {
		err = tracker.End(err)
	}()

	logger := loggerFor(j.Logger, TaskSalesWarmup)
	start := j.now()
	for _, token := range WarmupRanges {
		rangeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		_, err := j.Analytics.SalesHistory(rangeCtx, analytics.RangeQuery{Token: token}, analytics.DefaultRankLimit)
		cancel()
		if err != nil {
			logger.Error("warm range", slog.String("range", token), slog.Any("error", err))
			return err
		}
	}
	logger.Info("completed sales warmup", slog.Int("ranges", len(WarmupRanges)), slog.Duration("duration", j.now().Sub(start)))
	return nil
}

func (j *SalesWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
