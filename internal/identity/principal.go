// Package identity resolves bearer tokens into principals and issues
// server-verified session tokens for the admin console.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidToken indicates a token that is malformed, expired, badly
	// signed, or bound to a revoked session.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrInvalidCredentials indicates a failed password login.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrNotFound indicates the directory has no such user.
	ErrNotFound = errors.New("identity: user not found")
)

// Principal describes the authenticated caller.
type Principal struct {
	ID        uuid.UUID
	Email     string
	SessionID string
}

// User is a directory entry from the hosted identity service.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type principalContextKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal, if the request carried one.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
