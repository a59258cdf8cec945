package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/stellarc/stellarc/internal/identity"
	"github.com/stellarc/stellarc/internal/platform/httpx"
	"github.com/stellarc/stellarc/internal/rbac"
	"github.com/stellarc/stellarc/internal/roles"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes registers the audit timeline and CSV export.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.ErrorJSON(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
		}),
	)
	r.Route("/admin/audit", func(r chi.Router) {
		r.Use(h.auth.Require)
		r.Use(h.rbac.RequireAny(roles.MsgAdminRequired, rbac.RoleAdmin))
		r.Get("/", h.handleTimeline)
		r.With(limiter).Get("/export.csv", h.handleExport)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if principal, ok := identity.PrincipalFromContext(r.Context()); ok {
		return "user:" + principal.ID.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
