package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarc/stellarc/internal/identity"
)

type fakeSource struct {
	mu    sync.Mutex
	roles map[uuid.UUID][]string
	calls int
	err   error
}

func (f *fakeSource) RolesFor(ctx context.Context, userID uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]string{}, f.roles[userID]...), nil
}

func (f *fakeSource) HasAnyRole(ctx context.Context, userID uuid.UUID, roles []string) (bool, error) {
	granted, err := f.RolesFor(ctx, userID)
	if err != nil {
		return false, err
	}
	return HasAny(granted, NormalizeRoles(roles)), nil
}

func TestNormalizeRoles(t *testing.T) {
	assert.Equal(t, []string{"admin", "user"}, NormalizeRoles([]string{" Admin", "user", "", "ADMIN"}))
	assert.True(t, Known(RoleModerator))
	assert.False(t, Known("owner"))
}

func TestHasAny(t *testing.T) {
	assert.True(t, HasAny([]string{"Admin"}, []string{"admin", "user"}))
	assert.False(t, HasAny([]string{"moderator"}, []string{"admin", "user"}))
	assert.False(t, HasAny(nil, []string{"admin"}))
	assert.True(t, HasAny(nil, nil))
}

func TestCachedCheckerCachesAndInvalidates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	userID := uuid.New()
	src := &fakeSource{roles: map[uuid.UUID][]string{userID: {RoleModerator}}}
	checker := NewCachedChecker(src, client, time.Minute, nil)
	ctx := context.Background()

	ok, err := checker.HasAnyRole(ctx, userID, []string{RoleAdmin, RoleUser})
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = checker.HasAnyRole(ctx, userID, []string{RoleModerator})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, src.calls)

	src.roles[userID] = []string{RoleAdmin}
	require.NoError(t, checker.Invalidate(ctx, userID))
	ok, err = checker.HasAnyRole(ctx, userID, []string{RoleAdmin})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, src.calls)

	mr.FastForward(2 * time.Minute)
	_, err = checker.Roles(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

// gatedSource reads the roles, reports that it started, then waits for release.
type gatedSource struct {
	mu      sync.Mutex
	roles   map[uuid.UUID][]string
	started chan struct{}
	release chan struct{}
}

func newGatedSource(roles map[uuid.UUID][]string) *gatedSource {
	return &gatedSource{roles: roles, started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gatedSource) RolesFor(ctx context.Context, userID uuid.UUID) ([]string, error) {
	g.mu.Lock()
	roles := append([]string{}, g.roles[userID]...)
	g.mu.Unlock()
	g.started <- struct{}{}
	<-g.release
	return roles, nil
}

func (g *gatedSource) set(userID uuid.UUID, roles []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roles[userID] = roles
}

type rolesResult struct {
	roles []string
	err   error
}

func TestCachedCheckerSharedFillSurvivesCancelledCaller(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	userID := uuid.New()
	src := newGatedSource(map[uuid.UUID][]string{userID: {RoleAdmin}})
	checker := NewCachedChecker(src, client, time.Minute, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan rolesResult, 1)
	go func() {
		roles, err := checker.Roles(firstCtx, userID)
		first <- rolesResult{roles, err}
	}()
	<-src.started

	second := make(chan rolesResult, 1)
	go func() {
		roles, err := checker.Roles(context.Background(), userID)
		second <- rolesResult{roles, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	res := <-first
	assert.ErrorIs(t, res.err, context.Canceled)

	close(src.release)
	res = <-second
	require.NoError(t, res.err)
	assert.Equal(t, []string{RoleAdmin}, res.roles)
}

func TestCachedCheckerInvalidateDuringFill(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	userID := uuid.New()
	src := newGatedSource(map[uuid.UUID][]string{userID: {RoleAdmin}})
	checker := NewCachedChecker(src, client, time.Hour, nil)
	ctx := context.Background()

	inFlight := make(chan rolesResult, 1)
	go func() {
		roles, err := checker.Roles(ctx, userID)
		inFlight <- rolesResult{roles, err}
	}()
	<-src.started

	src.set(userID, nil)
	require.NoError(t, checker.Invalidate(ctx, userID))
	close(src.release)
	res := <-inFlight
	require.NoError(t, res.err)

	assert.False(t, mr.Exists(roleKey(userID)), "stale roles cached after invalidate")
	ok, err := checker.HasAnyRole(ctx, userID, []string{RoleAdmin})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedCheckerFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	userID := uuid.New()
	src := &fakeSource{roles: map[uuid.UUID][]string{userID: {RoleUser}}}
	checker := NewCachedChecker(src, client, time.Minute, nil)

	ok, err := checker.HasAnyRole(context.Background(), userID, []string{RoleUser})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCachedCheckerPropagatesSourceError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	checker := NewCachedChecker(&fakeSource{err: errors.New("db down")}, client, time.Minute, nil)
	_, err := checker.HasAnyRole(context.Background(), uuid.New(), []string{RoleAdmin})
	require.Error(t, err)
}

func TestRequireAny(t *testing.T) {
	admin, moderator := uuid.New(), uuid.New()
	src := &fakeSource{roles: map[uuid.UUID][]string{
		admin:     {RoleAdmin},
		moderator: {RoleModerator},
	}}
	mw := Middleware{Checker: src}
	handler := mw.RequireAny("Forbidden - Admin access required", RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(p *identity.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if p != nil {
			req = req.WithContext(identity.WithPrincipal(req.Context(), *p))
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	rr := serve(nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(&identity.Principal{ID: moderator})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"error":"Forbidden - Admin access required"}`, rr.Body.String())

	rr = serve(&identity.Principal{ID: admin})
	assert.Equal(t, http.StatusOK, rr.Code)

	src.err = errors.New("db down")
	rr = serve(&identity.Principal{ID: admin})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
