package files

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stellarc/stellarc/internal/identity"
	"github.com/stellarc/stellarc/internal/platform/httpx"
	"github.com/stellarc/stellarc/internal/rbac"
)

type fileService interface {
	MaxBytes() int64
	Upload(ctx context.Context, owner uuid.UUID, name string, body io.ReadSeeker, size int64) (Metadata, error)
	List(ctx context.Context, owner uuid.UUID) ([]Metadata, error)
}

// Handler exposes upload endpoints.
type Handler struct {
	logger  *slog.Logger
	service fileService
	auth    identity.Middleware
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service fileService, auth identity.Middleware, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, auth: auth, rbac: rbac}
}

// MountRoutes registers /files.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/files", func(r chi.Router) {
		r.Use(h.auth.Require)
		r.Use(h.rbac.RequireAny("Access denied: Insufficient permissions", rbac.RoleAdmin, rbac.RoleUser))
		r.Get("/", h.list)
		r.Post("/", h.upload)
	})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	principal, _ := identity.PrincipalFromContext(r.Context())
	if limit := h.service.MaxBytes(); limit > 0 {
		// Leave headroom for multipart framing; the service enforces the file limit.
		r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.ErrorJSON(w, http.StatusBadRequest, "A file is required")
		return
	}
	defer func() { _ = file.Close() }()

	meta, err := h.service.Upload(r.Context(), principal.ID, header.Filename, file, header.Size)
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("file upload", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, meta)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := identity.PrincipalFromContext(r.Context())
	out, err := h.service.List(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("list files", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"files": out})
}
