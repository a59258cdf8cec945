package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the JWT claims shared with the hosted identity service.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// SessionChecker reports whether a session is still active.
type SessionChecker interface {
	Active(ctx context.Context, id string) (bool, error)
}

// Tokens verifies and issues HS256 bearer tokens.
type Tokens struct {
	secret   []byte
	issuer   string
	sessions SessionChecker
	now      func() time.Time
}

// NewTokens constructs Tokens. sessions may be nil, in which case session
// bound tokens are accepted without a revocation check.
func NewTokens(secret, issuer string, sessions SessionChecker) *Tokens {
	return &Tokens{
		secret:   []byte(secret),
		issuer:   issuer,
		sessions: sessions,
		now:      time.Now,
	}
}

// Verify parses the token and resolves it into a principal.
func (t *Tokens) Verify(ctx context.Context, token string) (Principal, error) {
	if t == nil || len(t.secret) == 0 {
		return Principal{}, errors.New("identity: verifier not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	if claims.SessionID != "" && t.sessions != nil {
		active, err := t.sessions.Active(ctx, claims.SessionID)
		if err != nil {
			return Principal{}, fmt.Errorf("identity: session lookup: %w", err)
		}
		if !active {
			return Principal{}, fmt.Errorf("%w: session revoked", ErrInvalidToken)
		}
	}

	return Principal{ID: id, Email: claims.Email, SessionID: claims.SessionID}, nil
}

// Issue signs a token for the user bound to sessionID.
func (t *Tokens) Issue(user User, sessionID string, ttl time.Duration) (string, time.Time, error) {
	now := t.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:     user.Email,
		SessionID: sessionID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
