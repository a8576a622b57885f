package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var parser = jwt.NewParser()

// parseClaims decodes the token payload without verifying the signature.
// The backend is the token authority; the console only reads what it was handed.
func parseClaims(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// PrincipalFromToken reads operator identity from an access token.
func PrincipalFromToken(raw string) (Principal, error) {
	claims, err := parseClaims(raw)
	if err != nil {
		return Principal{}, err
	}
	p := Principal{
		ID:         firstString(claims, "user_id", "sub", "id"),
		Username:   firstString(claims, "username", "preferred_username", "name"),
		TenantID:   firstString(claims, "tenant_id", "tenantId"),
		TenantCode: firstString(claims, "code", "tenant_code", "tenantCode"),
		TenantName: firstString(claims, "tenant_name", "tenantName"),
		Roles:      roleClaims(claims),
	}
	if p.ID == "" {
		return Principal{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return p, nil
}

// Status reports the token's lifetime as of now. Tokens without exp never expire.
func Status(raw string, now time.Time) TokenStatus {
	if raw == "" {
		return TokenStatus{Expired: true}
	}
	claims, err := parseClaims(raw)
	if err != nil {
		return TokenStatus{Expired: true}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return TokenStatus{Expired: true}
	}
	if exp == nil {
		return TokenStatus{Valid: true}
	}
	left := exp.Sub(now)
	if left <= 0 {
		return TokenStatus{Expired: true}
	}
	return TokenStatus{
		Valid:        true,
		ExpiresIn:    left,
		NeedsRefresh: left <= RefreshThreshold,
	}
}

func firstString(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// roleClaims accepts plain string lists and Spring style [{"authority": "..."}] lists.
func roleClaims(claims jwt.MapClaims) []string {
	for _, key := range []string{"roles", "authorities"} {
		raw, ok := claims[key]
		if !ok {
			continue
		}
		var out []string
		switch v := raw.(type) {
		case string:
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		case []any:
			for _, item := range v {
				switch r := item.(type) {
				case string:
					out = append(out, r)
				case map[string]any:
					if name, ok := r["authority"].(string); ok {
						out = append(out, name)
					}
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return []string{}
}
