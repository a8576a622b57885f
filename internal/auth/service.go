package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Service wraps operator sign-in and token upkeep.
type Service struct {
	repo    Repository
	store   TokenStore
	logger  *slog.Logger
	now     func() time.Time
	refresh singleflight.Group
}

// NewService constructs a new Service.
func NewService(repo Repository, store TokenStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, store: store, logger: logger, now: time.Now}
}

// Login exchanges credentials for tokens and stores them.
func (s *Service) Login(ctx context.Context, creds Credentials) (Principal, error) {
	tokens, err := s.repo.Login(ctx, creds)
	if err != nil {
		return Principal{}, err
	}
	principal, err := PrincipalFromToken(tokens.AccessToken)
	if err != nil {
		return Principal{}, err
	}
	if err := s.store.Save(ctx, tokens, principal); err != nil {
		return Principal{}, fmt.Errorf("auth: store tokens: %w", err)
	}
	s.logger.Info("operator signed in",
		slog.String("operator", principal.Username),
		slog.String("tenant", principal.TenantCode),
	)
	return principal, nil
}

// Logout forgets the stored tokens.
func (s *Service) Logout(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Current returns the signed-in principal.
func (s *Service) Current(ctx context.Context) (Principal, error) {
	tokens, principal, err := s.store.Load(ctx)
	if err != nil || tokens.AccessToken == "" {
		return Principal{}, ErrSessionExpired
	}
	return principal, nil
}

// Validate inspects the lifetime of token.
func (s *Service) Validate(token string) TokenStatus {
	return Status(token, s.now())
}

// Token returns a usable access token, refreshing it when expired or close to expiry.
// It implements apiclient.TokenSource.
func (s *Service) Token(ctx context.Context) (string, error) {
	tokens, _, err := s.store.Load(ctx)
	if err != nil {
		return "", ErrSessionExpired
	}
	status := s.Validate(tokens.AccessToken)
	switch {
	case status.Valid && !status.NeedsRefresh:
		return tokens.AccessToken, nil
	case status.Valid:
		refreshed, err := s.Refresh(ctx)
		if err != nil {
			// Still good for this call.
			s.logger.Warn("proactive token refresh failed", slog.Any("error", err))
			return tokens.AccessToken, nil
		}
		return refreshed, nil
	default:
		return s.Refresh(ctx)
	}
}

// Refresh obtains a new access token. Concurrent refreshes of one refresh token share a single
// backend call. Failure logs the operator out.
func (s *Service) Refresh(ctx context.Context) (string, error) {
	tokens, _, err := s.store.Load(ctx)
	if err != nil || tokens.RefreshToken == "" {
		_ = s.store.Clear(ctx)
		return "", ErrSessionExpired
	}
	v, err, _ := s.refresh.Do(tokens.RefreshToken, func() (any, error) {
		return s.repo.Refresh(context.WithoutCancel(ctx), tokens.RefreshToken)
	})
	if err != nil {
		s.logger.Warn("token refresh failed", slog.Any("error", err))
		_ = s.store.Clear(ctx)
		return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	next := v.(Tokens)
	if next.RefreshToken == "" {
		next.RefreshToken = tokens.RefreshToken
	}
	principal, err := PrincipalFromToken(next.AccessToken)
	if err != nil {
		_ = s.store.Clear(ctx)
		return "", errors.Join(ErrSessionExpired, err)
	}
	if err := s.store.Save(ctx, next, principal); err != nil {
		return "", fmt.Errorf("auth: store tokens: %w", err)
	}
	return next.AccessToken, nil
}
