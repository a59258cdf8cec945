package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStaleLogScan counts automation logs left in processing.
	TaskStaleLogScan = "automation:stale_scan"
)

// StaleLogScanPayload configures a stale log scan. A zero OlderThan falls
// back to the job's configured threshold.
type StaleLogScanPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewStaleLogScanTask builds a scan task.
func NewStaleLogScanTask(olderThan time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(StaleLogScanPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStaleLogScan, data), nil
}
