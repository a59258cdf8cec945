package identity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionStore(client, time.Hour), mr
}

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", "stellarc", nil)
	user := User{ID: uuid.New(), Email: "admin@stellarc.test"}

	signed, expiresAt, err := tokens.Issue(user, "", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	p, err := tokens.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.ID)
	assert.Equal(t, user.Email, p.Email)
}

func TestTokensRejectExpired(t *testing.T) {
	tokens := NewTokens("secret", "", nil)
	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	signed, _, err := tokens.Issue(User{ID: uuid.New()}, "", time.Hour)
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.Verify(context.Background(), signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensRejectWrongSecretAndIssuer(t *testing.T) {
	signed, _, err := NewTokens("other", "stellarc", nil).Issue(User{ID: uuid.New()}, "", time.Hour)
	require.NoError(t, err)

	_, err = NewTokens("secret", "stellarc", nil).Verify(context.Background(), signed)
	require.ErrorIs(t, err, ErrInvalidToken)

	signed, _, err = NewTokens("secret", "elsewhere", nil).Issue(User{ID: uuid.New()}, "", time.Hour)
	require.NoError(t, err)
	_, err = NewTokens("secret", "stellarc", nil).Verify(context.Background(), signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensRejectNonUUIDSubject(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "service-account",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokens("secret", "", nil).Verify(context.Background(), signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensRejectRevokedSession(t *testing.T) {
	store, _ := newSessionStore(t)
	tokens := NewTokens("secret", "", store)
	user := User{ID: uuid.New()}

	sess, err := store.Create(context.Background(), user.ID, "127.0.0.1", "test")
	require.NoError(t, err)
	signed, _, err := tokens.Issue(user, sess.ID, time.Hour)
	require.NoError(t, err)

	p, err := tokens.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, p.SessionID)

	require.NoError(t, store.Revoke(context.Background(), sess.ID))
	_, err = tokens.Verify(context.Background(), signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionStoreExpiry(t *testing.T) {
	store, mr := newSessionStore(t)
	sess, err := store.Create(context.Background(), uuid.New(), "", "")
	require.NoError(t, err)

	active, err := store.Active(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, active)

	mr.FastForward(2 * time.Hour)
	active, err = store.Active(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.False(t, active)
	require.NoError(t, store.Revoke(context.Background(), sess.ID))
}

func TestParseBearer(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		token, ok := ParseBearer(tc.header)
		assert.Equal(t, tc.ok, ok, tc.header)
		assert.Equal(t, tc.token, token, tc.header)
	}
}
