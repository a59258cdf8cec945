package files

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Metadata is a file_metadata row.
type Metadata struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

// MetadataStore persists upload metadata.
type MetadataStore interface {
	Insert(ctx context.Context, m Metadata) (Metadata, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Metadata, error)
}

// Repository implements MetadataStore over file_metadata.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores m and returns it with generated fields filled.
func (r *Repository) Insert(ctx context.Context, m Metadata) (Metadata, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO file_metadata (user_id, name, path, size, mime_type)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`, m.UserID, m.Name, m.Path, m.Size, m.MimeType).Scan(&m.ID, &m.CreatedAt)
	return m, err
}

// ListByUser returns the user's files, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Metadata, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, name, path, size, mime_type, created_at
FROM file_metadata WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Metadata{}
	for rows.Next() {
		var m Metadata
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Path, &m.Size, &m.MimeType, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ MetadataStore = (*Repository)(nil)
