package rbac

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore reads and mutates the user_roles relation.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PGStore.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// HasAnyRole implements Checker.
func (s *PGStore) HasAnyRole(ctx context.Context, userID uuid.UUID, roles []string) (bool, error) {
	roles = NormalizeRoles(roles)
	if len(roles) == 0 {
		return true, nil
	}
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (
	SELECT 1 FROM user_roles WHERE user_id = $1 AND role::text = ANY($2)
)`, userID, roles).Scan(&ok)
	return ok, err
}

// RolesFor lists the labels held by userID.
func (s *PGStore) RolesFor(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT role::text FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	roles := []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListAssignments returns every (user, role) pair.
func (s *PGStore) ListAssignments(ctx context.Context) ([]Assignment, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, role::text, created_at FROM user_roles ORDER BY created_at, user_id, role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.UserID, &a.Role, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Assign inserts the pair. Uniqueness is the table's concern.
func (s *PGStore) Assign(ctx context.Context, userID uuid.UUID, role string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, userID, role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyAssigned
		}
		return err
	}
	return nil
}

// Revoke deletes the pair and reports whether a row was removed.
func (s *PGStore) Revoke(ctx context.Context, userID uuid.UUID, role string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role::text = $2`, userID, role)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

var _ Checker = (*PGStore)(nil)
