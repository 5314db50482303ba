package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ledgerbook/internal/core"
	"ledgerbook/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown login or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

type UserService struct {
	store     storage.Store
	validator *core.Validator
	now       func() time.Time
	cost      int
}

func NewUserService(store storage.Store, opts Options) *UserService {
	opts = opts.withDefaults()
	return &UserService{
		store:     store,
		validator: opts.Validator,
		now:       opts.Now,
		cost:      bcrypt.DefaultCost,
	}
}

// Register creates a user with a bcrypt hash of the password. A taken
// email or username is a *core.ConstraintViolationError.
func (s *UserService) Register(ctx context.Context, p core.RegisterParams) (core.User, error) {
	p.Email = strings.TrimSpace(p.Email)
	p.Username = strings.TrimSpace(p.Username)
	if err := s.validator.Struct(p); err != nil {
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), s.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u, err := s.store.CreateUser(ctx, core.User{
		Email:        p.Email,
		Username:     p.Username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return core.User{}, storeError("create user", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Authenticate checks a password against the user found by email or
// username.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (core.User, error) {
	u, err := s.store.GetUserByLogin(ctx, strings.TrimSpace(login))
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, storeError("get user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		slog.WarnContext(ctx, "Authentication failed", "user_id", u.ID)
		return core.User{}, ErrInvalidCredentials
	}
	return u, nil
}
