// Package auth implements account registration, login, and token handling.
package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/shopstack/storefront/internal/app/domain/user"
	"github.com/shopstack/storefront/internal/app/storage"
	apperrors "github.com/shopstack/storefront/internal/errors"
	"github.com/shopstack/storefront/pkg/logger"
)

// Service manages storefront accounts and issues bearer tokens.
type Service struct {
	users  storage.UserStore
	tokens *TokenIssuer
	log    *logger.Logger
}

// New creates the auth service. A nil logger defaults to a component logger.
func New(users storage.UserStore, tokens *TokenIssuer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Service{users: users, tokens: tokens, log: log}
}

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and returns it with a signed token. Emails are
// unique case-insensitively.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" {
		return user.User{}, "", apperrors.Validation("name is required")
	}
	if err := validateEmail(in.Email); err != nil {
		return user.User{}, "", err
	}
	if err := validatePassword(in.Password); err != nil {
		return user.User{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, "", apperrors.Internal(err)
	}

	created, err := s.users.CreateUser(ctx, user.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return user.User{}, "", apperrors.Conflict("email already registered")
		}
		return user.User{}, "", apperrors.Internal(err)
	}

	token, err := s.tokens.Issue(created)
	if err != nil {
		return user.User{}, "", apperrors.Internal(err)
	}

	s.log.WithField("user_id", created.ID).Info("account registered")
	return created, token, nil
}

// Login verifies credentials and returns the account with a fresh token.
// Unknown emails and wrong passwords produce the same error so the endpoint
// does not reveal which accounts exist.
func (s *Service) Login(ctx context.Context, email, password string) (user.User, string, error) {
	email = normalizeEmail(email)

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, "", apperrors.Unauthorized(apperrors.CodeBadCredentials, "invalid email or password")
		}
		return user.User{}, "", apperrors.Internal(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return user.User{}, "", apperrors.Unauthorized(apperrors.CodeBadCredentials, "invalid email or password")
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return user.User{}, "", apperrors.Internal(err)
	}
	return u, token, nil
}

// Verify validates a bearer token and returns the caller identity.
func (s *Service) Verify(tokenString string) (Identity, error) {
	return s.tokens.Verify(tokenString)
}

// GetProfile returns the account for the given user ID.
func (s *Service) GetProfile(ctx context.Context, userID string) (user.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, apperrors.NotFound("user not found")
		}
		return user.User{}, apperrors.Internal(err)
	}
	return u, nil
}

// ProfileUpdate carries the optional fields of a profile update. Empty
// fields keep their current value.
type ProfileUpdate struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfile applies a partial update to the caller's own account.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (user.User, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return user.User{}, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		u.Name = name
	}
	if in.Email != "" {
		email := normalizeEmail(in.Email)
		if err := validateEmail(email); err != nil {
			return user.User{}, err
		}
		u.Email = email
	}
	if in.Password != "" {
		if err := validatePassword(in.Password); err != nil {
			return user.User{}, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return user.User{}, apperrors.Internal(err)
		}
		u.PasswordHash = string(hash)
	}

	updated, err := s.users.UpdateUser(ctx, u)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return user.User{}, apperrors.Conflict("email already registered")
		}
		return user.User{}, apperrors.Internal(err)
	}
	return updated, nil
}

// ListUsers returns all accounts. Admin only; the handler enforces the role.
func (s *Service) ListUsers(ctx context.Context) ([]user.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return users, nil
}

// DeleteUser removes an account.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("user not found")
		}
		return apperrors.Internal(err)
	}
	s.log.WithField("user_id", userID).Info("account deleted")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at:], ".") {
		return apperrors.Validation("invalid email address")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return apperrors.Validation("password must be at least 8 characters")
	}
	return nil
}
