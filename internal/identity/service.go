// Package identity authenticates users and resolves tokens to verified
// identities for HTTP requests and websocket subscriptions.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/statusbeacon/beacon/internal/domain"
	"github.com/statusbeacon/beacon/internal/identity/jwt"
	"github.com/statusbeacon/beacon/internal/pkg/httputil"
	"github.com/statusbeacon/beacon/internal/realtime"
	"golang.org/x/crypto/bcrypt"
)

// Service implements authentication business logic.
type Service struct {
	repo Repository
	auth *jwt.Authenticator
}

// NewService creates a new identity service.
func NewService(repo Repository, auth *jwt.Authenticator) *Service {
	return &Service{repo: repo, auth: auth}
}

// LoginInput holds credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials and issues an access token. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, input LoginInput) (*domain.User, string, error) {
	user, err := s.repo.GetUserByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.auth.Generate(user)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}

// GetUserByID retrieves a user by ID.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ValidateToken verifies an access token and confirms its subject still
// exists. Role and organization come from the stored user, not the
// claims, so revoked roles take effect immediately.
func (s *Service) ValidateToken(ctx context.Context, token string) (httputil.AuthContext, error) {
	claims, err := s.auth.Verify(token)
	if err != nil {
		return httputil.AuthContext{}, ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return httputil.AuthContext{}, ErrInvalidToken
		}
		return httputil.AuthContext{}, fmt.Errorf("get user: %w", err)
	}

	return httputil.AuthContext{
		UserID: user.ID,
		OrgID:  user.OrgID,
		Role:   user.Role,
	}, nil
}

// AuthorizeSession resolves a websocket token to the organization the
// session subscribes to. Error values select the close code sent to the
// client.
func (s *Service) AuthorizeSession(ctx context.Context, token string) (domain.OrgRef, error) {
	claims, err := s.auth.Verify(token)
	if err != nil {
		return domain.OrgRef{}, realtime.ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return domain.OrgRef{}, realtime.ErrUnknownUser
		}
		return domain.OrgRef{}, fmt.Errorf("get user: %w", err)
	}

	org, err := s.repo.GetOrgRefByID(ctx, user.OrgID)
	if err != nil {
		return domain.OrgRef{}, fmt.Errorf("resolve org: %w", err)
	}
	return org, nil
}
