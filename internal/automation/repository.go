package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Repository implements LogStore over automation_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a processing record and returns its id.
func (r *Repository) Create(ctx context.Context, in NewLog) (uuid.UUID, error) {
	input, err := json.Marshal(in.Input)
	if err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	err = r.pool.QueryRow(ctx, `INSERT INTO automation_logs (user_id, task_type, status, input_data, model_used)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`, in.UserID, in.TaskType, string(StatusProcessing), input, in.Model).Scan(&id)
	return id, err
}

// MarkSuccess moves a processing record to success.
func (r *Repository) MarkSuccess(ctx context.Context, id uuid.UUID, out Output, executionMS int64) error {
	output, err := json.Marshal(out)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE automation_logs
SET status = $2, output_data = $3, execution_time_ms = $4, updated_at = NOW()
WHERE id = $1 AND status = $5`, id, string(StatusSuccess), output, executionMS, string(StatusProcessing))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotProcessing
	}
	return nil
}

// MarkError moves a processing record to error.
func (r *Repository) MarkError(ctx context.Context, id uuid.UUID, message string, executionMS int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE automation_logs
SET status = $2, error_message = $3, execution_time_ms = $4, updated_at = NOW()
WHERE id = $1 AND status = $5`, id, string(StatusError), message, executionMS, string(StatusProcessing))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotProcessing
	}
	return nil
}

const selectLog = `SELECT id, user_id, task_type, status, input_data, output_data, COALESCE(model_used, ''),
	error_message, execution_time_ms, created_at, updated_at
FROM automation_logs`

// Get loads one record.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (LogRecord, error) {
	rec, err := scanLog(r.pool.QueryRow(ctx, selectLog+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return LogRecord{}, ErrNotFound
	}
	return rec, err
}

// List returns the newest records matching filter.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]LogRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := selectLog
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, clampLimit(filter.Limit))
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LogRecord
	for rows.Next() {
		rec, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountStale counts records still processing that were created before cutoff.
func (r *Repository) CountStale(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM automation_logs WHERE status = $1 AND created_at < $2`,
		string(StatusProcessing), cutoff).Scan(&n)
	return n, err
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

func scanLog(row pgx.Row) (LogRecord, error) {
	var (
		rec    LogRecord
		userID uuid.NullUUID
		status string
		input  []byte
		output []byte
	)
	err := row.Scan(&rec.ID, &userID, &rec.TaskType, &status, &input, &output, &rec.ModelUsed,
		&rec.ErrorMessage, &rec.ExecutionTimeMS, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return LogRecord{}, err
	}
	rec.Status = Status(status)
	if userID.Valid {
		id := userID.UUID
		rec.UserID = &id
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &rec.Input); err != nil {
			return LogRecord{}, fmt.Errorf("decode input_data: %w", err)
		}
	}
	if len(output) > 0 {
		var out Output
		if err := json.Unmarshal(output, &out); err != nil {
			return LogRecord{}, fmt.Errorf("decode output_data: %w", err)
		}
		rec.Output = &out
	}
	return rec, nil
}

var _ LogStore = (*Repository)(nil)
