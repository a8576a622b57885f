package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-console/internal/auth"
	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
	_ "github.com/odyssey-erp/odyssey-console/testing"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return raw
}

func accessToken(t *testing.T, ttl time.Duration) string {
	return signToken(t, jwt.MapClaims{
		"user_id":   "8d1f4a52-5f7c-4b53-a9a5-1f3b0a0e6c11",
		"username":  "maria",
		"tenant_id": "0f6e3a8e-9a43-4f62-8d2b-6f7e1c2a9b10",
		"code":      "ACME",
		"roles":     []string{"ADMIN"},
		"exp":       time.Now().Add(ttl).Unix(),
	})
}

type stubRepo struct {
	loginTokens auth.Tokens
	loginErr    error
	refresh     func(ctx context.Context, token string) (auth.Tokens, error)
	refreshes   atomic.Int32
}

func (s *stubRepo) Login(context.Context, auth.Credentials) (auth.Tokens, error) {
	return s.loginTokens, s.loginErr
}

func (s *stubRepo) Refresh(ctx context.Context, token string) (auth.Tokens, error) {
	s.refreshes.Add(1)
	if s.refresh == nil {
		return auth.Tokens{}, errors.New("refresh not configured")
	}
	return s.refresh(ctx, token)
}

func TestPrincipalFromTokenFallbackClaims(t *testing.T) {
	raw := signToken(t, jwt.MapClaims{
		"sub":                "42",
		"preferred_username": "joao",
		"tenantId":           "tenant-9",
		"tenant_code":        "BETA",
		"tenantName":         "Beta Foods",
		"authorities":        []map[string]string{{"authority": "ROLE_ADMIN"}, {"authority": "ROLE_USER"}},
	})
	p, err := auth.PrincipalFromToken(raw)
	require.NoError(t, err)
	require.Equal(t, "42", p.ID)
	require.Equal(t, "joao", p.Username)
	require.Equal(t, "tenant-9", p.TenantID)
	require.Equal(t, "BETA", p.TenantCode)
	require.Equal(t, "Beta Foods", p.TenantName)
	require.Equal(t, []string{"ROLE_ADMIN", "ROLE_USER"}, p.Roles)
	require.True(t, p.HasAnyRole("role_admin"))
	require.False(t, p.HasAnyRole("SYSTEM_ADMIN"))
}

func TestPrincipalFromTokenRejectsGarbage(t *testing.T) {
	_, err := auth.PrincipalFromToken("not-a-jwt")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestStatus(t *testing.T) {
	now := time.Now()

	st := auth.Status(accessToken(t, time.Hour), now)
	require.True(t, st.Valid)
	require.False(t, st.NeedsRefresh)

	st = auth.Status(accessToken(t, 2*time.Minute), now)
	require.True(t, st.Valid)
	require.True(t, st.NeedsRefresh)

	st = auth.Status(accessToken(t, -time.Minute), now)
	require.False(t, st.Valid)
	require.True(t, st.Expired)
	require.Zero(t, st.ExpiresIn)

	st = auth.Status(signToken(t, jwt.MapClaims{"sub": "1"}), now)
	require.True(t, st.Valid)
	require.False(t, st.NeedsRefresh)

	st = auth.Status("", now)
	require.False(t, st.Valid)
}

func TestLoginStoresTokensAndPrincipal(t *testing.T) {
	store := auth.NewMemoryStore()
	repo := &stubRepo{loginTokens: auth.Tokens{AccessToken: accessToken(t, time.Hour), RefreshToken: "r1"}}
	svc := auth.NewService(repo, store, nil)

	p, err := svc.Login(context.Background(), auth.Credentials{Username: "maria", Password: "pw", TenantCode: "ACME"})
	require.NoError(t, err)
	require.Equal(t, "maria", p.Username)

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, p, current)

	require.NoError(t, svc.Logout(context.Background()))
	_, err = svc.Current(context.Background())
	require.ErrorIs(t, err, apiclient.ErrAuth)
}

func TestLoginErrorLeavesStoreEmpty(t *testing.T) {
	store := auth.NewMemoryStore()
	svc := auth.NewService(&stubRepo{loginErr: auth.ErrAccountLocked}, store, nil)
	_, err := svc.Login(context.Background(), auth.Credentials{})
	require.ErrorIs(t, err, auth.ErrAccountLocked)
	_, _, err = store.Load(context.Background())
	require.ErrorIs(t, err, auth.ErrNoTokens)
}

func TestTokenSkipsRefreshWhenFresh(t *testing.T) {
	store := auth.NewMemoryStore()
	fresh := accessToken(t, time.Hour)
	require.NoError(t, store.Save(context.Background(), auth.Tokens{AccessToken: fresh, RefreshToken: "r1"}, auth.Principal{ID: "1"}))
	repo := &stubRepo{}
	svc := auth.NewService(repo, store, nil)

	got, err := svc.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, fresh, got)
	require.Zero(t, repo.refreshes.Load())
}

func TestTokenRefreshesExpiredToken(t *testing.T) {
	store := auth.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), auth.Tokens{AccessToken: accessToken(t, -time.Minute), RefreshToken: "r1"}, auth.Principal{ID: "1"}))
	next := accessToken(t, time.Hour)
	repo := &stubRepo{refresh: func(_ context.Context, token string) (auth.Tokens, error) {
		require.Equal(t, "r1", token)
		return auth.Tokens{AccessToken: next}, nil
	}}
	svc := auth.NewService(repo, store, nil)

	got, err := svc.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, next, got)

	tokens, p, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "r1", tokens.RefreshToken)
	require.Equal(t, "maria", p.Username)
}

func TestTokenConcurrentRefreshSharesOneCall(t *testing.T) {
	store := auth.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), auth.Tokens{AccessToken: accessToken(t, -time.Minute), RefreshToken: "r1"}, auth.Principal{ID: "1"}))
	release := make(chan struct{})
	next := accessToken(t, time.Hour)
	repo := &stubRepo{refresh: func(context.Context, string) (auth.Tokens, error) {
		<-release
		return auth.Tokens{AccessToken: next, RefreshToken: "r2"}, nil
	}}
	svc := auth.NewService(repo, store, nil)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := svc.Token(context.Background())
			if err == nil {
				results[i] = tok
			}
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), repo.refreshes.Load())
	for _, tok := range results {
		require.Equal(t, next, tok)
	}
}

func TestTokenRefreshFailureLogsOut(t *testing.T) {
	store := auth.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), auth.Tokens{AccessToken: accessToken(t, -time.Minute), RefreshToken: "r1"}, auth.Principal{ID: "1"}))
	svc := auth.NewService(&stubRepo{}, store, nil)

	_, err := svc.Token(context.Background())
	require.ErrorIs(t, err, auth.ErrSessionExpired)
	require.ErrorIs(t, err, apiclient.ErrAuth)
	_, _, err = store.Load(context.Background())
	require.ErrorIs(t, err, auth.ErrNoTokens)
}

func TestTokenProactiveRefreshFailureKeepsCurrentToken(t *testing.T) {
	store := auth.NewMemoryStore()
	soon := accessToken(t, 2*time.Minute)
	require.NoError(t, store.Save(context.Background(), auth.Tokens{AccessToken: soon, RefreshToken: "r1"}, auth.Principal{ID: "1"}))
	svc := auth.NewService(&stubRepo{}, store, nil)

	got, err := svc.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, soon, got)
}
