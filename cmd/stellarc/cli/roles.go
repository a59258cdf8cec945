package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/stellarc/stellarc/internal/rbac"
)

// RoleStore mutates role assignments directly, bypassing the HTTP surface.
type RoleStore interface {
	Assign(ctx context.Context, userID uuid.UUID, role string) error
	Revoke(ctx context.Context, userID uuid.UUID, role string) (bool, error)
}

// RoleOpsCLI bootstraps and repairs role assignments, for example the first
// admin account which cannot be granted through the admin API.
type RoleOpsCLI struct {
	store RoleStore
}

// NewRoleOpsCLI constructs the helper.
func NewRoleOpsCLI(store RoleStore) (*RoleOpsCLI, error) {
	if store == nil {
		return nil, errors.New("roles cli: store not configured")
	}
	return &RoleOpsCLI{store: store}, nil
}

// RoleOptions defines the flags shared by grant and revoke.
type RoleOptions struct {
	UserID     string
	Role       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// RoleSummary describes the JSON response for grant and revoke.
type RoleSummary struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	Action  string `json:"action"`
	Changed bool   `json:"changed"`
}

// GrantCommand assigns a role. Granting an existing role is not an error.
func (c *RoleOpsCLI) GrantCommand(ctx context.Context, opts RoleOptions) int {
	return c.run(ctx, "grant", opts, func(id uuid.UUID, role string) (bool, error) {
		err := c.store.Assign(ctx, id, role)
		if errors.Is(err, rbac.ErrAlreadyAssigned) {
			return false, nil
		}
		return err == nil, err
	})
}

// RevokeCommand removes a role. Revoking an absent role is not an error.
func (c *RoleOpsCLI) RevokeCommand(ctx context.Context, opts RoleOptions) int {
	return c.run(ctx, "revoke", opts, func(id uuid.UUID, role string) (bool, error) {
		return c.store.Revoke(ctx, id, role)
	})
}

func (c *RoleOpsCLI) run(ctx context.Context, action string, opts RoleOptions, apply func(uuid.UUID, string) (bool, error)) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	id, err := uuid.Parse(strings.TrimSpace(opts.UserID))
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "role %s: invalid user id %q\n", action, opts.UserID)
		return 1
	}
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if !rbac.Known(role) {
		_, _ = fmt.Fprintf(opts.Stderr, "role %s: %v %q\n", action, rbac.ErrUnknownRole, opts.Role)
		return 1
	}
	changed, err := apply(id, role)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "role %s: %v\n", action, err)
		return 1
	}
	summary := RoleSummary{UserID: id.String(), Role: role, Action: action, Changed: changed}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "role %s: encode json: %v\n", action, err)
			return 1
		}
		return 0
	}
	if changed {
		_, _ = fmt.Fprintf(opts.Stdout, "%s: %s %s\n", action, role, id)
	} else {
		_, _ = fmt.Fprintf(opts.Stdout, "%s: %s %s (no change)\n", action, role, id)
	}
	return 0
}
