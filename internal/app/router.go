package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/stellarc/stellarc/internal/audit/http"
	"github.com/stellarc/stellarc/internal/automation"
	"github.com/stellarc/stellarc/internal/files"
	"github.com/stellarc/stellarc/internal/identity"
	"github.com/stellarc/stellarc/internal/observability"
	"github.com/stellarc/stellarc/internal/platform/httpx"
	"github.com/stellarc/stellarc/internal/roles"
	"github.com/stellarc/stellarc/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	AuthHandler  *identity.Handler
	AgentHandler *automation.Handler
	RolesHandler *roles.Handler
	FilesHandler *files.Handler
	AuditHandler *audithttp.Handler
	JobHandler   *jobs.Handler
	Metrics      *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// The agent call waits on the completion provider for as long as it
	// takes, so it stays outside the request timeout.
	if params.AgentHandler != nil {
		params.AgentHandler.MountAgent(r)
	}

	timeout := 30 * time.Second
	if params.Config != nil && params.Config.AppRequestTimeout > 0 {
		timeout = params.Config.AppRequestTimeout
	}
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(timeout))
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			params.RolesHandler.MountRoutes(r)
		}
		if params.AgentHandler != nil {
			params.AgentHandler.MountLogs(r)
		}
		if params.FilesHandler != nil {
			params.FilesHandler.MountRoutes(r)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
