package files

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarc/stellarc/internal/identity"
	"github.com/stellarc/stellarc/internal/rbac"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (m *memoryObjects) Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error {
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryObjects) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.types, key)
	return nil
}

type memoryMeta struct {
	mu   sync.Mutex
	rows []Metadata
	err  error
}

func (m *memoryMeta) Insert(ctx context.Context, md Metadata) (Metadata, error) {
	if m.err != nil {
		return Metadata{}, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	md.ID = uuid.New()
	md.CreatedAt = time.Now()
	m.rows = append(m.rows, md)
	return md, nil
}

func (m *memoryMeta) ListByUser(ctx context.Context, userID uuid.UUID) ([]Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Metadata{}
	for _, md := range m.rows {
		if md.UserID == userID {
			out = append(out, md)
		}
	}
	return out, nil
}

type roleTable map[uuid.UUID][]string

func (r roleTable) HasAnyRole(ctx context.Context, userID uuid.UUID, roles []string) (bool, error) {
	return rbac.HasAny(r[userID], rbac.NormalizeRoles(roles)), nil
}

type fixture struct {
	objects *memoryObjects
	meta    *memoryMeta
	router  http.Handler
	userID  uuid.UUID
	token   string
	modTok  string
}

func newFixture(t *testing.T, maxBytes int64) *fixture {
	t.Helper()
	tokens := identity.NewTokens("secret", "", nil)
	f := &fixture{
		objects: &memoryObjects{objects: map[string][]byte{}, types: map[string]string{}},
		meta:    &memoryMeta{},
		userID:  uuid.New(),
	}
	modID := uuid.New()
	roles := roleTable{f.userID: {rbac.RoleUser}, modID: {rbac.RoleModerator}}

	var err error
	f.token, _, err = tokens.Issue(identity.User{ID: f.userID}, "", time.Hour)
	require.NoError(t, err)
	f.modTok, _, err = tokens.Issue(identity.User{ID: modID}, "", time.Hour)
	require.NoError(t, err)

	h := NewHandler(nil, NewService(f.objects, f.meta, maxBytes, nil), identity.Middleware{Verifier: tokens}, rbac.Middleware{Checker: roles})
	r := chi.NewRouter()
	h.MountRoutes(r)
	f.router = r
	return f
}

func (f *fixture) upload(t *testing.T, token, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestUploadStoresObjectAndMetadata(t *testing.T) {
	f := newFixture(t, 1024)

	rr := f.upload(t, f.token, "quarterly report.png", pngHeader)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var md Metadata
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &md))
	assert.Equal(t, f.userID, md.UserID)
	assert.Equal(t, "quarterly_report.png", md.Name)
	assert.Equal(t, "image/png", md.MimeType)
	assert.EqualValues(t, len(pngHeader), md.Size)
	assert.True(t, strings.HasPrefix(md.Path, f.userID.String()+"/"))
	assert.True(t, strings.HasSuffix(md.Path, "-quarterly_report.png"))
	assert.Equal(t, pngHeader, f.objects.objects[md.Path])
	assert.Equal(t, "image/png", f.objects.types[md.Path])

	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	list := httptest.NewRecorder()
	f.router.ServeHTTP(list, req)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), md.Path)
}

func TestUploadRejections(t *testing.T) {
	f := newFixture(t, 8)

	rr := f.upload(t, f.token, "big.txt", []byte("more than eight bytes"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"File too large"}`, rr.Body.String())

	rr = f.upload(t, f.token, "empty.txt", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.upload(t, f.modTok, "a.txt", []byte("hi"))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/files", strings.NewReader("x"))
	req.Header.Set("Authorization", "Bearer "+f.token)
	missing := httptest.NewRecorder()
	f.router.ServeHTTP(missing, req)
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	assert.Empty(t, f.meta.rows)
}

func TestUploadStorageFailure(t *testing.T) {
	f := newFixture(t, 1024)
	f.objects.err = errors.New("bucket unavailable")

	rr := f.upload(t, f.token, "a.txt", []byte("hello"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, f.meta.rows)

	f.objects.err = nil
	f.meta.err = errors.New("insert failed")
	rr = f.upload(t, f.token, "b.txt", []byte("hello"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, f.objects.objects, "object left behind without metadata")
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "report.pdf", cleanName("../../etc/report.pdf"))
	assert.Equal(t, "a_b.txt", cleanName(`C:\Users\me\a b.txt`))
	assert.Equal(t, "", cleanName("  "))
}
