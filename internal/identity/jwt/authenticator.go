// Package jwt implements identity.Authenticator with HS256 bearer tokens.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/news-digest/internal/domain"
	"github.com/bissquit/news-digest/internal/identity"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "news-digest"

// Config holds token settings.
type Config struct {
	SecretKey     string
	TokenDuration time.Duration
}

// Authenticator signs and validates access tokens.
type Authenticator struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

// NewAuthenticator creates a new JWT authenticator.
func NewAuthenticator(config Config) (*Authenticator, error) {
	if config.SecretKey == "" {
		return nil, errors.New("jwt: secret key is required")
	}
	if config.TokenDuration <= 0 {
		config.TokenDuration = 30 * 24 * time.Hour
	}

	return &Authenticator{
		secret:   []byte(config.SecretKey),
		duration: config.TokenDuration,
		now:      time.Now,
	}, nil
}

// GenerateToken issues a token whose subject is the user id.
func (a *Authenticator) GenerateToken(_ context.Context, user *domain.User) (string, error) {
	now := a.now()
	claims := gojwt.RegisteredClaims{
		Subject:   user.ID,
		Issuer:    issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(a.duration)),
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, expiry and issuer and returns the subject.
func (a *Authenticator) ValidateToken(_ context.Context, token string) (string, error) {
	claims := &gojwt.RegisteredClaims{}
	_, err := gojwt.ParseWithClaims(token, claims, func(_ *gojwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", identity.ErrInvalidToken, err)
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("%w: malformed subject", identity.ErrInvalidToken)
	}
	return claims.Subject, nil
}
