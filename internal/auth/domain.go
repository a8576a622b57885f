// Package auth signs operators in against the backend and keeps their bearer tokens fresh.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
)

// RefreshThreshold is how close to expiry an access token is refreshed.
const RefreshThreshold = 5 * time.Minute

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAccountLocked      = errors.New("auth: account locked, try again later")
	ErrTenantNotFound     = errors.New("auth: tenant not found")
	ErrServer             = errors.New("auth: server error, try again")
	ErrInvalidToken       = errors.New("auth: invalid token")
	// ErrSessionExpired matches apiclient.ErrAuth.
	ErrSessionExpired = fmt.Errorf("auth: session expired: %w", apiclient.ErrAuth)
)

// Credentials are the operator's sign-in inputs.
type Credentials struct {
	Username   string `json:"username" validate:"required,max=100"`
	Password   string `json:"password" validate:"required,max=200"`
	TenantCode string `json:"tenantCode" validate:"required,max=50"`
}

// Tokens is the backend login/refresh response.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
}

// Principal is the signed-in operator as described by the access token.
type Principal struct {
	ID         string   `json:"id"`
	Username   string   `json:"username"`
	TenantID   string   `json:"tenantId"`
	TenantCode string   `json:"tenantCode"`
	TenantName string   `json:"tenantName,omitempty"`
	Roles      []string `json:"roles"`
}

// TenantUUID parses the tenant claim.
func (p Principal) TenantUUID() (uuid.UUID, error) {
	return uuid.Parse(p.TenantID)
}

// HasAnyRole reports whether the principal holds one of roles, ignoring case.
func (p Principal) HasAnyRole(roles ...string) bool {
	for _, have := range p.Roles {
		for _, want := range roles {
			if strings.EqualFold(strings.TrimSpace(have), strings.TrimSpace(want)) {
				return true
			}
		}
	}
	return false
}

// TokenStatus summarises an access token's lifetime.
type TokenStatus struct {
	Valid        bool          `json:"valid"`
	Expired      bool          `json:"expired"`
	ExpiresIn    time.Duration `json:"expiresIn"`
	NeedsRefresh bool          `json:"needsRefresh"`
}
