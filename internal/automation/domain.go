package automation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stellarc/stellarc/internal/llm"
)

// Status is the lifecycle state of a log record.
type Status string

// Log record states. Processing is the only non-terminal state.
const (
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// DefaultTaskType labels requests that do not name one.
const DefaultTaskType = "general"

var (
	// ErrNotFound indicates the log record does not exist or is not visible.
	ErrNotFound = errors.New("automation: log not found")
	// ErrNotProcessing is returned when finalizing a record already in a terminal state.
	ErrNotProcessing = errors.New("automation: log already finalized")
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusSuccess, StatusError:
		return true
	}
	return false
}

// Input is the verbatim request payload stored with each record.
type Input struct {
	Prompt   string `json:"prompt"`
	TaskType string `json:"taskType"`
}

// Output is stored on success.
type Output struct {
	Result    string         `json:"result"`
	Model     string         `json:"model"`
	ToolCalls []llm.ToolCall `json:"tool_calls"`
}

// LogRecord is one agent invocation attempt.
type LogRecord struct {
	ID              uuid.UUID  `json:"id"`
	UserID          *uuid.UUID `json:"user_id"`
	TaskType        string     `json:"task_type"`
	Status          Status     `json:"status"`
	Input           Input      `json:"input_data"`
	Output          *Output    `json:"output_data"`
	ModelUsed       string     `json:"model_used"`
	ErrorMessage    *string    `json:"error_message"`
	ExecutionTimeMS *int64     `json:"execution_time_ms"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewLog describes a record to open in the processing state.
type NewLog struct {
	UserID   *uuid.UUID
	TaskType string
	Input    Input
	Model    string
}

// ListFilter narrows log listings.
type ListFilter struct {
	UserID *uuid.UUID
	Status Status
	Limit  int
}

// LogStore persists automation log records.
type LogStore interface {
	Create(ctx context.Context, in NewLog) (uuid.UUID, error)
	MarkSuccess(ctx context.Context, id uuid.UUID, out Output, executionMS int64) error
	MarkError(ctx context.Context, id uuid.UUID, message string, executionMS int64) error
	Get(ctx context.Context, id uuid.UUID) (LogRecord, error)
	List(ctx context.Context, filter ListFilter) ([]LogRecord, error)
}
