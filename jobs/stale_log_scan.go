package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stellarc/stellarc/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StaleCounter counts automation logs still processing that were created before cutoff.
type StaleCounter interface {
	CountStale(ctx context.Context, cutoff time.Time) (int, error)
}

// StaleLogScanJob reports automation logs whose request never finalised them.
// It only observes; rows are left untouched.
type StaleLogScanJob struct {
	Store     StaleCounter
	OlderThan time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewStaleLogScanJob initialises the scan handler.
func NewStaleLogScanJob(store StaleCounter, olderThan time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *StaleLogScanJob {
	return &StaleLogScanJob{
		Store:     store,
		OlderThan: olderThan,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one scan.
func (j *StaleLogScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("stale log scan: handler not configured")
	}
	var payload StaleLogScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	olderThan := payload.OlderThan
	if olderThan <= 0 {
		olderThan = j.OlderThan
	}
	if olderThan <= 0 {
		olderThan = 15 * time.Minute
	}

	tracker := j.metrics().Track(TaskStaleLogScan)
	cutoff := j.now().Add(-olderThan)
	logger := j.logger().With(slog.Duration("older_than", olderThan))

	count, err := j.Store.CountStale(ctx, cutoff)
	if err != nil {
		logger.Error("stale log scan failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics().SetStaleLogs(count)
	if count > 0 {
		logger.Warn("automation logs stuck in processing", slog.Int("count", count), slog.Time("cutoff", cutoff))
	} else {
		logger.Debug("no stale automation logs")
	}
	return tracker.End(nil)
}

func (j *StaleLogScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStaleLogScan))
	}
	return slog.Default().With(slog.String("job", TaskStaleLogScan))
}

func (j *StaleLogScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StaleLogScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
