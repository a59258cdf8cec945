package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stellarc/stellarc/internal/platform/httpx"
)

// Caller-facing authentication messages.
const (
	MsgAuthRequired = "Authentication required"
	MsgInvalidAuth  = "Invalid authentication"
)

// Verifier resolves a bearer token into a principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// Middleware authenticates requests from their Authorization header.
type Middleware struct {
	Verifier Verifier
	Logger   *slog.Logger
}

// Require rejects requests without a valid bearer token.
func (m Middleware) Require(next http.Handler) http.Handler {
	return m.Authenticate(true)(next)
}

// Optional lets anonymous requests through but still verifies a supplied token.
func (m Middleware) Optional(next http.Handler) http.Handler {
	return m.Authenticate(false)(next)
}

// Authenticate returns the middleware; required selects strict behaviour.
func (m Middleware) Authenticate(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" && !required {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := ParseBearer(header)
			if !ok {
				httpx.ErrorJSON(w, http.StatusUnauthorized, MsgAuthRequired)
				return
			}
			principal, err := m.Verifier.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, ErrInvalidToken) {
					m.logger().Warn("authentication failed", slog.String("path", r.URL.Path), slog.Any("error", err))
					httpx.ErrorJSON(w, http.StatusUnauthorized, MsgInvalidAuth)
					return
				}
				m.logger().Error("authentication lookup", slog.Any("error", err))
				httpx.ErrorJSON(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
