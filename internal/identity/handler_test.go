package identity_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stellarc/stellarc/internal/identity"
	_ "github.com/stellarc/stellarc/testing"
)

type stubDirectory struct {
	user *identity.User
	err  error
}

func (s *stubDirectory) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, identity.ErrNotFound
	}
	return s.user, nil
}

func (s *stubDirectory) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]identity.User, error) {
	if s.user == nil {
		return nil, nil
	}
	return []identity.User{*s.user}, nil
}

type fixture struct {
	router   http.Handler
	sessions *identity.SessionStore
	tokens   *identity.Tokens
}

func newFixture(t *testing.T, dir identity.Directory) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := identity.NewSessionStore(client, time.Hour)
	tokens := identity.NewTokens("secret", "", sessions)
	mw := identity.Middleware{Verifier: tokens}
	handler := identity.NewHandler(nil, identity.NewService(dir, sessions, tokens), mw)

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	r.With(mw.Require).Get("/me", func(w http.ResponseWriter, r *http.Request) {
		p, _ := identity.PrincipalFromContext(r.Context())
		_, _ = w.Write([]byte(p.ID.String()))
	})
	return fixture{router: r, sessions: sessions, tokens: tokens}
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func post(router http.Handler, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestLoginIssuesSessionToken(t *testing.T) {
	user := &identity.User{ID: uuid.New(), Email: "admin@stellarc.test", PasswordHash: hashed(t, "correct-horse")}
	f := newFixture(t, &stubDirectory{user: user})

	rr := post(f.router, "/auth/token", `{"email":"admin@stellarc.test","password":"correct-horse"}`, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var tok identity.AccessToken
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	assert.Equal(t, "bearer", tok.TokenType)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	me := httptest.NewRecorder()
	f.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, user.ID.String(), me.Body.String())
}

func TestLogoutRevokesToken(t *testing.T) {
	user := &identity.User{ID: uuid.New(), Email: "admin@stellarc.test", PasswordHash: hashed(t, "correct-horse")}
	f := newFixture(t, &stubDirectory{user: user})

	rr := post(f.router, "/auth/token", `{"email":"admin@stellarc.test","password":"correct-horse"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var tok identity.AccessToken
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))

	out := post(f.router, "/auth/logout", "", tok.Token)
	require.Equal(t, http.StatusNoContent, out.Code)

	again := post(f.router, "/auth/logout", "", tok.Token)
	require.Equal(t, http.StatusUnauthorized, again.Code)
	assert.JSONEq(t, `{"error":"Invalid authentication"}`, again.Body.String())
}

func TestLoginRejectsBadPassword(t *testing.T) {
	user := &identity.User{ID: uuid.New(), Email: "admin@stellarc.test", PasswordHash: hashed(t, "correct-horse")}
	f := newFixture(t, &stubDirectory{user: user})

	rr := post(f.router, "/auth/token", `{"email":"admin@stellarc.test","password":"stellarc2024"}`, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Invalid email or password"}`, rr.Body.String())
}

func TestLoginValidatesPayload(t *testing.T) {
	f := newFixture(t, &stubDirectory{})

	rr := post(f.router, "/auth/token", `{"email":"not-an-email"}`, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(f.router, "/auth/token", `{`, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoginDirectoryFailure(t *testing.T) {
	f := newFixture(t, &stubDirectory{err: errors.New("db down")})

	rr := post(f.router, "/auth/token", `{"email":"admin@stellarc.test","password":"x"}`, "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestMiddlewareStrictAndOptional(t *testing.T) {
	tokens := identity.NewTokens("secret", "", nil)
	mw := identity.Middleware{Verifier: tokens}
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identity.PrincipalFromContext(r.Context()); ok {
			_, _ = w.Write([]byte("principal"))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	})

	cases := []struct {
		name     string
		required bool
		header   string
		status   int
		body     string
	}{
		{"strict missing", true, "", http.StatusUnauthorized, `{"error":"Authentication required"}`},
		{"strict malformed", true, "Token abc", http.StatusUnauthorized, `{"error":"Authentication required"}`},
		{"strict invalid", true, "Bearer abc", http.StatusUnauthorized, `{"error":"Invalid authentication"}`},
		{"optional missing", false, "", http.StatusOK, "anonymous"},
		{"optional invalid", false, "Bearer abc", http.StatusUnauthorized, `{"error":"Invalid authentication"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			mw.Authenticate(tc.required)(echo).ServeHTTP(rr, req)
			require.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.body, rr.Body.String())
			} else {
				assert.JSONEq(t, tc.body, rr.Body.String())
			}
		})
	}

	signed, _, err := tokens.Issue(identity.User{ID: uuid.New()}, "", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	mw.Optional(echo).ServeHTTP(rr, req)
	assert.Equal(t, "principal", rr.Body.String())
}
