package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/Makazone/howhappy-api/internal/apperr"
	"github.com/Makazone/howhappy-api/internal/storage"
	"github.com/Makazone/howhappy-api/pkg/logger"
	"github.com/Makazone/howhappy-api/pkg/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the persistence surface the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type TokenIssuer interface {
	IssueUserToken(userID string) (string, error)
}

type Service struct {
	users  UserStore
	tokens TokenIssuer
}

func NewService(users UserStore, tokens TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

// AuthResult is what register and login hand back to the HTTP layer.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Register creates a user account and signs them in.
func (s *Service) Register(ctx context.Context, email, password string, displayName *string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.NewInvalid("A valid email is required")
	}
	if len(password) < 8 {
		return nil, apperr.NewInvalid("Password must be at least 8 characters")
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperr.NewConflict("Email already registered")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NewInternal("Failed to check email", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.NewInternal("Failed to hash password", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, apperr.NewInternal("Failed to create user", err)
	}

	logger.Info("User registered", zap.String("user_id", user.ID))
	return s.signIn(user)
}

// Login verifies credentials and issues a user token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NewUnauthorized("Invalid email or password")
		}
		return nil, apperr.NewInternal("Failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.NewUnauthorized("Invalid email or password")
	}

	return s.signIn(user)
}

// Profile returns the account behind a verified user token.
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NewUnauthorized("Account no longer exists")
		}
		return nil, apperr.NewInternal("Failed to load user", err)
	}
	return user, nil
}

func (s *Service) signIn(user *model.User) (*AuthResult, error) {
	tok, err := s.tokens.IssueUserToken(user.ID)
	if err != nil {
		return nil, apperr.NewInternal("Failed to issue token", err)
	}
	return &AuthResult{User: user, Token: tok}, nil
}
