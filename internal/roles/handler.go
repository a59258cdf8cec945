package roles

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stellarc/stellarc/internal/identity"
	"github.com/stellarc/stellarc/internal/platform/httpx"
	"github.com/stellarc/stellarc/internal/rbac"
)

// MsgAdminRequired is returned to authenticated non-admin callers.
const MsgAdminRequired = "Forbidden - Admin access required"

type roleService interface {
	ListUsersWithRoles(ctx context.Context) ([]UserWithRoles, error)
	AddRole(ctx context.Context, actor identity.Principal, in RoleChange) error
	RemoveRole(ctx context.Context, actor identity.Principal, in RoleChange) (bool, error)
}

// Handler manages role management endpoints.
type Handler struct {
	logger  *slog.Logger
	service roleService
	auth    identity.Middleware
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service roleService, auth identity.Middleware, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, auth: auth, rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.Require)
		r.Use(h.rbac.RequireAny(MsgAdminRequired, rbac.RoleAdmin))
		r.Get("/functions/get-users-with-roles", h.listUsers)
		r.Post("/functions/get-users-with-roles", h.listUsers)
		r.Get("/admin/users", h.listUsers)
		r.Post("/admin/roles", h.addRole)
		r.Delete("/admin/roles", h.removeRole)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsersWithRoles(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) addRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.PrincipalFromContext(r.Context())
	var in RoleChange
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.ErrorJSON(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.service.AddRole(r.Context(), actor, in); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"user_id": in.UserID, "role": in.Role})
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.PrincipalFromContext(r.Context())
	var in RoleChange
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.ErrorJSON(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	removed, err := h.service.RemoveRole(r.Context(), actor, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user_id": in.UserID, "role": in.Role, "removed": removed})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("role management", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
