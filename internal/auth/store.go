package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/odyssey-erp/odyssey-console/internal/shared"
)

// ErrNoTokens reports that the store holds no signed-in operator.
var ErrNoTokens = errors.New("auth: no tokens")

// TokenStore keeps the operator's tokens and principal.
type TokenStore interface {
	Load(ctx context.Context) (Tokens, Principal, error)
	Save(ctx context.Context, tokens Tokens, principal Principal) error
	Clear(ctx context.Context) error
}

// MemoryStore holds a single operator in process memory. Used by the CLI.
type MemoryStore struct {
	mu        sync.RWMutex
	tokens    Tokens
	principal Principal
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements TokenStore.
func (m *MemoryStore) Load(context.Context) (Tokens, Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tokens.AccessToken == "" {
		return Tokens{}, Principal{}, ErrNoTokens
	}
	return m.tokens, m.principal, nil
}

// Save implements TokenStore.
func (m *MemoryStore) Save(_ context.Context, tokens Tokens, principal Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = tokens
	m.principal = principal
	return nil
}

// Clear implements TokenStore.
func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = Tokens{}
	m.principal = Principal{}
	return nil
}

const (
	sessionKeyAccess    = "auth.access_token"
	sessionKeyRefresh   = "auth.refresh_token"
	sessionKeyPrincipal = "auth.principal"
)

// SessionStore keeps tokens in the console session carried by the request context.
type SessionStore struct{}

// Load implements TokenStore.
func (SessionStore) Load(ctx context.Context) (Tokens, Principal, error) {
	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		return Tokens{}, Principal{}, shared.ErrNoSession
	}
	access := sess.Get(sessionKeyAccess)
	if access == "" {
		return Tokens{}, Principal{}, ErrNoTokens
	}
	var principal Principal
	if raw := sess.Get(sessionKeyPrincipal); raw != "" {
		if err := json.Unmarshal([]byte(raw), &principal); err != nil {
			return Tokens{}, Principal{}, err
		}
	}
	return Tokens{AccessToken: access, RefreshToken: sess.Get(sessionKeyRefresh)}, principal, nil
}

// Save implements TokenStore.
func (SessionStore) Save(ctx context.Context, tokens Tokens, principal Principal) error {
	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		return shared.ErrNoSession
	}
	raw, err := json.Marshal(principal)
	if err != nil {
		return err
	}
	sess.Set(sessionKeyAccess, tokens.AccessToken)
	if tokens.RefreshToken != "" {
		sess.Set(sessionKeyRefresh, tokens.RefreshToken)
	}
	sess.Set(sessionKeyPrincipal, string(raw))
	sess.SetUser(principal.ID)
	return nil
}

// Clear implements TokenStore.
func (SessionStore) Clear(ctx context.Context) error {
	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		return nil
	}
	sess.Delete(sessionKeyAccess)
	sess.Delete(sessionKeyRefresh)
	sess.Delete(sessionKeyPrincipal)
	sess.Delete(shared.SessionKeyCompanyID)
	sess.SetUser("")
	return nil
}
