package rbac

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role labels stored in user_roles.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleUser      = "user"
)

var (
	// ErrUnknownRole is returned for labels outside the known set.
	ErrUnknownRole = errors.New("rbac: unknown role")
	// ErrAlreadyAssigned reports a duplicate (user, role) pair rejected by the store.
	ErrAlreadyAssigned = errors.New("rbac: role already assigned")
)

// Assignment links a principal to one role label.
type Assignment struct {
	UserID    uuid.UUID
	Role      string
	CreatedAt time.Time
}

// Checker answers capability lookups for a principal.
type Checker interface {
	HasAnyRole(ctx context.Context, userID uuid.UUID, roles []string) (bool, error)
}

// Known reports whether role is one of the recognised labels.
func Known(role string) bool {
	switch role {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	}
	return false
}

// NormalizeRoles lowercases, trims and de-duplicates labels, keeping order.
func NormalizeRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// HasAny reports whether granted intersects required.
func HasAny(granted, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		set[strings.ToLower(g)] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}
