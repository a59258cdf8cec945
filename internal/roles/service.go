package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stellarc/stellarc/internal/identity"
	"github.com/stellarc/stellarc/internal/platform/httpx"
	"github.com/stellarc/stellarc/internal/rbac"
	"github.com/stellarc/stellarc/internal/shared"
)

// NoEmail is reported for principals whose account has no address on file.
const NoEmail = "No email"

const directoryBatch = 200

// AssignmentStore persists (user, role) pairs.
type AssignmentStore interface {
	ListAssignments(ctx context.Context) ([]rbac.Assignment, error)
	Assign(ctx context.Context, userID uuid.UUID, role string) error
	Revoke(ctx context.Context, userID uuid.UUID, role string) (bool, error)
}

// UserLookup resolves account details for user ids.
type UserLookup interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]identity.User, error)
}

// CacheInvalidator drops cached role lookups for a principal.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// AuditRecorder stores administrative actions.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// UserWithRoles is one row of the user listing.
type UserWithRoles struct {
	UserID    uuid.UUID  `json:"user_id"`
	Email     string     `json:"email"`
	CreatedAt *time.Time `json:"created_at"`
	Roles     []string   `json:"roles"`
}

// RoleChange is the payload of add and remove operations.
type RoleChange struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role" validate:"required,oneof=admin moderator user"`
}

// Service implements role management.
type Service struct {
	store     AssignmentStore
	users     UserLookup
	cache     CacheInvalidator
	audit     AuditRecorder
	logger    *slog.Logger
	validator *validator.Validate
}

// NewService constructs a Service. cache and audit may be nil.
func NewService(store AssignmentStore, users UserLookup, cache CacheInvalidator, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		users:     users,
		cache:     cache,
		audit:     audit,
		logger:    logger,
		validator: validator.New(),
	}
}

// ListUsersWithRoles returns every principal holding at least one role.
func (s *Service) ListUsersWithRoles(ctx context.Context) ([]UserWithRoles, error) {
	assignments, err := s.store.ListAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list role assignments: %v", httpx.ErrStorage, err)
	}

	order := make([]uuid.UUID, 0)
	byUser := make(map[uuid.UUID]*UserWithRoles)
	for _, a := range assignments {
		entry, ok := byUser[a.UserID]
		if !ok {
			entry = &UserWithRoles{UserID: a.UserID, Email: NoEmail, Roles: []string{}}
			byUser[a.UserID] = entry
			order = append(order, a.UserID)
		}
		entry.Roles = append(entry.Roles, a.Role)
	}

	batches := make([][]identity.User, (len(order)+directoryBatch-1)/directoryBatch)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range batches {
		lo := i * directoryBatch
		hi := min(lo+directoryBatch, len(order))
		g.Go(func() error {
			users, err := s.users.ListByIDs(gctx, order[lo:hi])
			if err != nil {
				return err
			}
			batches[i] = users
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: list users: %v", httpx.ErrStorage, err)
	}
	for _, batch := range batches {
		for _, u := range batch {
			entry, ok := byUser[u.ID]
			if !ok {
				continue
			}
			if u.Email != "" {
				entry.Email = u.Email
			}
			if !u.CreatedAt.IsZero() {
				created := u.CreatedAt
				entry.CreatedAt = &created
			}
		}
	}

	out := make([]UserWithRoles, 0, len(order))
	for _, id := range order {
		out = append(out, *byUser[id])
	}
	return out, nil
}

// AddRole grants role to the target principal. Duplicate pairs are rejected
// by the store, not deduplicated here.
func (s *Service) AddRole(ctx context.Context, actor identity.Principal, in RoleChange) error {
	userID, err := s.validate(in)
	if err != nil {
		return err
	}
	if err := s.store.Assign(ctx, userID, in.Role); err != nil {
		if errors.Is(err, rbac.ErrAlreadyAssigned) {
			return httpx.NewError(httpx.ErrConflict, "Role already assigned")
		}
		return fmt.Errorf("%w: assign role: %v", httpx.ErrStorage, err)
	}
	s.afterChange(ctx, actor, userID, "role.add", map[string]any{"role": in.Role})
	return nil
}

// RemoveRole revokes role from the target principal. Removing a pair that
// does not exist succeeds.
func (s *Service) RemoveRole(ctx context.Context, actor identity.Principal, in RoleChange) (bool, error) {
	userID, err := s.validate(in)
	if err != nil {
		return false, err
	}
	removed, err := s.store.Revoke(ctx, userID, in.Role)
	if err != nil {
		return false, fmt.Errorf("%w: revoke role: %v", httpx.ErrStorage, err)
	}
	if removed {
		s.afterChange(ctx, actor, userID, "role.remove", map[string]any{"role": in.Role})
	}
	return removed, nil
}

func (s *Service) validate(in RoleChange) (uuid.UUID, error) {
	if err := s.validator.Struct(in); err != nil {
		return uuid.Nil, httpx.NewError(httpx.ErrInvalidRequest, "A valid user_id and role are required")
	}
	id, err := uuid.Parse(in.UserID)
	if err != nil {
		return uuid.Nil, httpx.NewError(httpx.ErrInvalidRequest, "A valid user_id and role are required")
	}
	return id, nil
}

func (s *Service) afterChange(ctx context.Context, actor identity.Principal, target uuid.UUID, action string, meta map[string]any) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, target); err != nil {
			s.logger.Warn("invalidate role cache", slog.String("user_id", target.String()), slog.Any("error", err))
		}
	}
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "user_roles",
		EntityID: target.String(),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("record audit entry", slog.String("action", action), slog.Any("error", err))
	}
}
