package services

import (
	"context"
	"testing"
	"time"

	"ledgerbook/internal/core"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestUserService(env *testEnv) *UserService {
	svc := NewUserService(env.repo, env.opts)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	users := newTestUserService(env)

	u, err := users.Register(ctx, core.RegisterParams{
		Email:    " ann@example.com ",
		Username: "ann",
		Password: "correct horse",
	})
	require.NoError(t, err)
	require.Equal(t, "ann@example.com", u.Email)
	require.NotEqual(t, "correct horse", u.PasswordHash)

	byName, err := users.Authenticate(ctx, "ann", "correct horse")
	require.NoError(t, err)
	require.Equal(t, u.ID, byName.ID)

	byEmail, err := users.Authenticate(ctx, "ann@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	_, err = users.Authenticate(ctx, "ann", "wrong password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = users.Authenticate(ctx, "nobody", "correct horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRejects(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	users := newTestUserService(env)

	_, err := users.Register(ctx, core.RegisterParams{Email: "not-an-email", Username: "an", Password: "short"})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.True(t, verr.Has("email"))
	require.True(t, verr.Has("username"))
	require.True(t, verr.Has("password"))

	_, err = users.Register(ctx, core.RegisterParams{Email: "ann@example.com", Username: "ann", Password: "password1"})
	require.NoError(t, err)

	_, err = users.Register(ctx, core.RegisterParams{Email: "other@example.com", Username: "ann", Password: "password1"})
	require.ErrorIs(t, err, core.ErrConstraintViolation)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	sessions := NewSessionService(env.repo, env.opts)

	token, session, err := sessions.CreateSession(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, token, 24)
	require.Equal(t, SessionID(token), session.ID)
	require.Len(t, session.ID, 64)
	require.True(t, session.ExpiresAt.Equal(env.clock.Now().Add(30*24*time.Hour)))

	got, user, err := sessions.ValidateSession(ctx, token)
	require.NoError(t, err)
	require.Equal(t, u.ID, user.ID)
	require.True(t, got.ExpiresAt.Equal(session.ExpiresAt), "fresh sessions are not renewed")

	// Inside the renewal window the expiry moves forward.
	env.clock.Set(env.clock.Now().Add(20 * 24 * time.Hour))
	got, _, err = sessions.ValidateSession(ctx, token)
	require.NoError(t, err)
	require.True(t, got.ExpiresAt.Equal(env.clock.Now().Add(30*24*time.Hour)))

	stored, err := env.repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, stored.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, sessions.InvalidateSession(ctx, session.ID))
	_, _, err = sessions.ValidateSession(ctx, token)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestExpiredSessionIsDeleted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "ann")
	sessions := NewSessionService(env.repo, env.opts)

	token, session, err := sessions.CreateSession(ctx, u.ID)
	require.NoError(t, err)

	env.clock.Set(session.ExpiresAt)
	_, _, err = sessions.ValidateSession(ctx, token)
	require.ErrorIs(t, err, ErrInvalidSession)

	_, err = env.repo.GetSession(ctx, session.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	_, _, err = sessions.ValidateSession(ctx, "unknown-token")
	require.ErrorIs(t, err, ErrInvalidSession)
}
