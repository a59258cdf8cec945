package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory reads user accounts owned by the hosted identity service.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error)
}

// PGDirectory implements Directory over the auth.users relation.
type PGDirectory struct {
	pool *pgxpool.Pool
}

// NewDirectory constructs a PostgreSQL directory.
func NewDirectory(pool *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{pool: pool}
}

// FindByEmail fetches a user by email.
func (d *PGDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	const query = `SELECT id, COALESCE(email, ''), COALESCE(encrypted_password, ''), created_at
FROM auth.users WHERE lower(email) = lower($1) LIMIT 1`
	var u User
	err := d.pool.QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ListByIDs returns the users matching ids, in no particular order.
func (d *PGDirectory) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	rows, err := d.pool.Query(ctx, `SELECT id, COALESCE(email, ''), created_at FROM auth.users WHERE id::text = ANY($1)`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

var _ Directory = (*PGDirectory)(nil)
