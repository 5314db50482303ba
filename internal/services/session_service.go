package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgerbook/internal/core"
	"ledgerbook/internal/storage"
)

const (
	sessionDuration    = 30 * 24 * time.Hour
	sessionRenewWindow = 15 * 24 * time.Hour
	sessionTokenBytes  = 18
)

// ErrInvalidSession is returned for unknown or expired session tokens.
var ErrInvalidSession = errors.New("invalid session")

// SessionService issues opaque session tokens. Only the sha256 of a token
// is stored.
type SessionService struct {
	store storage.Store
	now   func() time.Time
}

func NewSessionService(store storage.Store, opts Options) *SessionService {
	opts = opts.withDefaults()
	return &SessionService{store: store, now: opts.Now}
}

func generateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SessionID derives the stored session id from a token.
func SessionID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CreateSession starts a session for userID and returns its token.
func (s *SessionService) CreateSession(ctx context.Context, userID int64) (string, core.Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return "", core.Session{}, err
	}

	now := s.now()
	session, err := s.store.CreateSession(ctx, core.Session{
		ID:        SessionID(token),
		UserID:    userID,
		ExpiresAt: now.Add(sessionDuration),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return "", core.Session{}, storeError("create session", err)
	}
	return token, session, nil
}

// ValidateSession resolves a token to its session and user. Expired
// sessions are deleted; sessions close to expiry are extended.
func (s *SessionService) ValidateSession(ctx context.Context, token string) (core.Session, core.User, error) {
	id := SessionID(token)
	session, err := s.store.GetSession(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.Session{}, core.User{}, ErrInvalidSession
	}
	if err != nil {
		return core.Session{}, core.User{}, storeError("get session", err)
	}

	now := s.now()
	if !now.Before(session.ExpiresAt) {
		if err := s.store.DeleteSession(ctx, id); err != nil {
			return core.Session{}, core.User{}, storeError("delete session", err)
		}
		slog.InfoContext(ctx, "Session expired", "user_id", session.UserID)
		return core.Session{}, core.User{}, ErrInvalidSession
	}

	if !now.Before(session.ExpiresAt.Add(-sessionRenewWindow)) {
		session.ExpiresAt = now.Add(sessionDuration)
		session.UpdatedAt = now
		if err := s.store.UpdateSessionExpiry(ctx, id, session.ExpiresAt, now); err != nil {
			return core.Session{}, core.User{}, storeError("renew session", err)
		}
	}

	user, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		return core.Session{}, core.User{}, storeError("get session user", err)
	}
	return session, user, nil
}

// InvalidateSession deletes a session by id.
func (s *SessionService) InvalidateSession(ctx context.Context, id string) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return storeError("delete session", err)
	}
	return nil
}
