package automation

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/stellarc/stellarc/internal/identity"
	"github.com/stellarc/stellarc/internal/platform/httpx"
)

type agentService interface {
	RequiresAuth() bool
	Authorize(ctx context.Context, principal *identity.Principal) error
	Execute(ctx context.Context, principal *identity.Principal, req Request) (Result, error)
	ListLogs(ctx context.Context, principal identity.Principal, filter ListFilter) ([]LogRecord, error)
	GetLog(ctx context.Context, principal identity.Principal, id uuid.UUID) (LogRecord, error)
}

// Handler exposes the agent endpoint and log browsing.
type Handler struct {
	logger  *slog.Logger
	service agentService
	auth    identity.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service agentService, auth identity.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, auth: auth}
}

// MountAgent registers the invocation endpoint. It must sit outside any
// request timeout middleware.
func (h *Handler) MountAgent(r chi.Router) {
	r.With(h.auth.Authenticate(h.service.RequiresAuth())).Post("/functions/ai-agent", h.invoke)
}

// MountLogs registers the log browsing endpoints.
func (h *Handler) MountLogs(r chi.Router) {
	r.Route("/agent/logs", func(r chi.Router) {
		r.Use(h.auth.Require)
		r.Get("/", h.listLogs)
		r.Get("/{id}", h.getLog)
	})
}

func (h *Handler) invoke(w http.ResponseWriter, r *http.Request) {
	var principal *identity.Principal
	if p, ok := identity.PrincipalFromContext(r.Context()); ok {
		principal = &p
	}
	if err := h.service.Authorize(r.Context(), principal); err != nil {
		h.fail(w, r, err)
		return
	}

	var req Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ErrorJSON(w, http.StatusBadRequest, MsgPromptRequired)
		return
	}
	result, err := h.service.Execute(r.Context(), principal, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	principal, _ := identity.PrincipalFromContext(r.Context())
	filter := ListFilter{Status: Status(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpx.ErrorJSON(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}
	logs, err := h.service.ListLogs(r.Context(), principal, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	principal, _ := identity.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.ErrorJSON(w, http.StatusBadRequest, "Invalid log id")
		return
	}
	rec, err := h.service.GetLog(r.Context(), principal, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("agent request failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
