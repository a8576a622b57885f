package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
)

// Repository exchanges credentials and refresh tokens with the backend.
type Repository interface {
	Login(ctx context.Context, creds Credentials) (Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
}

// APIRepository talks to the backend /auth endpoints.
type APIRepository struct {
	client *apiclient.Client
}

// NewAPIRepository builds a repository. client must not carry a token source of its own.
func NewAPIRepository(client *apiclient.Client) *APIRepository {
	return &APIRepository{client: client}
}

// Login implements Repository.
func (r *APIRepository) Login(ctx context.Context, creds Credentials) (Tokens, error) {
	var tokens Tokens
	if err := r.client.Post(ctx, "/auth/login", nil, creds, &tokens); err != nil {
		return Tokens{}, loginError(err)
	}
	if tokens.AccessToken == "" {
		return Tokens{}, fmt.Errorf("%w: empty access token", ErrServer)
	}
	return tokens, nil
}

// Refresh implements Repository.
func (r *APIRepository) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	client := r.client.Clone(apiclient.WithTokenSource(apiclient.StaticToken(refreshToken)))
	var tokens Tokens
	if err := client.Post(ctx, "/auth/refresh", nil, nil, &tokens); err != nil {
		return Tokens{}, fmt.Errorf("auth: refresh: %w", err)
	}
	if tokens.AccessToken == "" {
		return Tokens{}, fmt.Errorf("auth: refresh: %w", ErrInvalidToken)
	}
	return tokens, nil
}

func loginError(err error) error {
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode == 0 {
		return fmt.Errorf("auth: login: %w", err)
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	case http.StatusLocked:
		return ErrAccountLocked
	case http.StatusNotFound:
		return ErrTenantNotFound
	default:
		return fmt.Errorf("%w: %v", ErrServer, err)
	}
}
