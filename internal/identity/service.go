package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bissquit/news-digest/internal/domain"
	"github.com/bissquit/news-digest/internal/pkg/ctxlog"
	"golang.org/x/crypto/bcrypt"
)

// Repository defines the user storage the identity service needs.
type Repository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Authenticator issues and checks bearer tokens.
type Authenticator interface {
	GenerateToken(ctx context.Context, user *domain.User) (string, error)
	ValidateToken(ctx context.Context, token string) (userID string, err error)
}

// Service handles registration, login and token validation.
type Service struct {
	repo       Repository
	auth       Authenticator
	bcryptCost int
}

// NewService creates a new identity service.
func NewService(repo Repository, auth Authenticator) *Service {
	return &Service{
		repo:       repo,
		auth:       auth,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// RegisterInput contains data for user registration.
type RegisterInput struct {
	Email    string
	Password string
}

// LoginInput contains data for user login.
type LoginInput struct {
	Email    string
	Password string
}

// Session is an authenticated user with its bearer token.
type Session struct {
	User  *domain.User
	Token string
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a subscribed user with no topics and signs them in.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	email := NormalizeEmail(input.Email)

	_, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailExists
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		Topics:       []string{},
		IsSubscribed: true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.auth.GenerateToken(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	ctxlog.FromContext(ctx).Info("user registered", "user_id", user.ID)
	return &Session{User: user, Token: token}, nil
}

// Login checks credentials and issues a token. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, input LoginInput) (*Session, error) {
	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.auth.GenerateToken(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &Session{User: user, Token: token}, nil
}

// ValidateToken returns the user id a token was issued for.
func (s *Service) ValidateToken(ctx context.Context, token string) (string, error) {
	return s.auth.ValidateToken(ctx, token)
}
