package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-console/internal/auth"
	"github.com/odyssey-erp/odyssey-console/internal/platform/httpx"
)

// Middleware gates console routes on the roles carried by the operator's access token.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAnyRole ensures the operator holds at least one of roles. An empty list allows everyone.
func (m Middleware) RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	normalized := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if hasAnyRole(principal.Roles, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("console access denied",
					slog.String("operator", principal.Username),
					slog.Any("roles", principal.Roles),
				)
			}
			httpx.RespondError(w, httpx.ErrForbidden)
		})
	}
}

// RequireAllRoles ensures the operator holds every one of roles.
func (m Middleware) RequireAllRoles(roles ...string) func(http.Handler) http.Handler {
	normalized := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if hasAllRoles(principal.Roles, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			httpx.RespondError(w, httpx.ErrForbidden)
		})
	}
}

func normalizeRoles(roles []string) []string {
	unique := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToUpper(role))
		if role == "" {
			continue
		}
		unique[role] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for role := range unique {
		normalized = append(normalized, role)
	}
	return normalized
}

func roleSet(held []string) map[string]struct{} {
	set := make(map[string]struct{}, len(held))
	for _, role := range held {
		set[strings.ToUpper(strings.TrimSpace(role))] = struct{}{}
	}
	return set
}

func hasAnyRole(held, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := roleSet(held)
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

func hasAllRoles(held, required []string) bool {
	set := roleSet(held)
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}
