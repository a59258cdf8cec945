package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SessionRegistry persists login sessions.
type SessionRegistry interface {
	Create(ctx context.Context, userID uuid.UUID, ip, ua string) (Session, error)
	Revoke(ctx context.Context, id string) error
	TTL() time.Duration
}

// AccessToken is returned from a successful login.
type AccessToken struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service wraps password login and logout.
type Service struct {
	directory Directory
	sessions  SessionRegistry
	tokens    *Tokens
	compare   func(hash, password []byte) error
}

// NewService constructs a new Service.
func NewService(directory Directory, sessions SessionRegistry, tokens *Tokens) *Service {
	return &Service{directory: directory, sessions: sessions, tokens: tokens, compare: bcrypt.CompareHashAndPassword}
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// decoyHash is compared against when there is no real hash, so unknown
// accounts cost the same bcrypt work as wrong passwords.
func decoyHash() []byte {
	dummyHashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("stellarc-decoy-password"), bcrypt.DefaultCost)
		if err == nil {
			dummyHash = h
		}
	})
	return dummyHash
}

// Login validates email/password credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (AccessToken, error) {
	user, err := s.directory.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = s.compare(decoyHash(), []byte(password))
			return AccessToken{}, ErrInvalidCredentials
		}
		return AccessToken{}, fmt.Errorf("identity: find user: %w", err)
	}
	if user.PasswordHash == "" {
		_ = s.compare(decoyHash(), []byte(password))
		return AccessToken{}, ErrInvalidCredentials
	}
	if err := s.compare([]byte(user.PasswordHash), []byte(password)); err != nil {
		return AccessToken{}, ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(ctx, user.ID, ip, ua)
	if err != nil {
		return AccessToken{}, fmt.Errorf("identity: create session: %w", err)
	}
	token, expiresAt, err := s.tokens.Issue(*user, sess.ID, s.sessions.TTL())
	if err != nil {
		_ = s.sessions.Revoke(ctx, sess.ID)
		return AccessToken{}, err
	}
	return AccessToken{Token: token, TokenType: "bearer", ExpiresAt: expiresAt}, nil
}

// Logout revokes the session bound to the principal's token.
func (s *Service) Logout(ctx context.Context, p Principal) error {
	return s.sessions.Revoke(ctx, p.SessionID)
}
