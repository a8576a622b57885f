package rbac

import (
	"strings"

	"golang.org/x/text/cases"
)

// Filter projects the catalog for display: a case-insensitive substring match on key or
// description, narrowed to module when set. The module tag is matched
// after NormalizeModule. The input is not modified.
func Filter(perms []Permission, query, module string) []Permission {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(query))
	module = NormalizeModule(module)
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if module != "" && p.Module != module {
			continue
		}
		if needle != "" &&
			!strings.Contains(fold.String(p.PermissionKey), needle) &&
			!strings.Contains(fold.String(p.Description), needle) {
			continue
		}
		out = append(out, p)
	}
	return out
}
