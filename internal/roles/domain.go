// Package roles reads the assignable role catalog.
package roles

import "strings"

// Role is an assignable role. Name is unique within a tenant.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"role"`
	Description string `json:"description,omitempty"`
}

// IDsForNames matches role names against the catalog, ignoring case and a ROLE_ prefix.
// Names absent from the catalog are skipped.
func IDsForNames(catalog []Role, names []string) []int64 {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[canonical(n)] = struct{}{}
	}
	ids := make([]int64, 0, len(names))
	for _, role := range catalog {
		if _, ok := wanted[canonical(role.Name)]; ok {
			ids = append(ids, role.ID)
		}
	}
	return ids
}

func canonical(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	return strings.TrimPrefix(name, "ROLE_")
}
