package rbac

import (
	"log/slog"
	"net/http"

	"github.com/stellarc/stellarc/internal/identity"
	"github.com/stellarc/stellarc/internal/platform/httpx"
)

// Middleware wires role checks for HTTP handlers.
type Middleware struct {
	Checker Checker
	Logger  *slog.Logger
}

// RequireAny ensures the authenticated principal holds one of roles.
// Requests without a principal get 401; a failed check answers 403 with message.
func (m Middleware) RequireAny(message string, roles ...string) func(http.Handler) http.Handler {
	normalized := NormalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := identity.PrincipalFromContext(r.Context())
			if !ok {
				httpx.ErrorJSON(w, http.StatusUnauthorized, identity.MsgAuthRequired)
				return
			}
			granted, err := m.Checker.HasAnyRole(r.Context(), principal.ID, normalized)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require any", slog.String("user_id", principal.ID.String()), slog.Any("error", err))
				}
				httpx.ErrorJSON(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				return
			}
			if !granted {
				httpx.ErrorJSON(w, http.StatusForbidden, message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
