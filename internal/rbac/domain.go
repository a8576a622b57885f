// Package rbac holds the permission catalog and per-user permission grants.
package rbac

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Permission is an entry of the global permission catalog.
type Permission struct {
	ID            int64  `json:"id"`
	PermissionKey string `json:"permissionKey"`
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	Module        string `json:"module,omitempty"`
	Level         int    `json:"level,omitempty"`
	IsActive      bool   `json:"isActive"`
}

// UserPermission is a grant record for one user, permission and tenant.
type UserPermission struct {
	ID           int64      `json:"id,omitempty"`
	UserID       uuid.UUID  `json:"userId"`
	PermissionID int64      `json:"permissionId"`
	TenantID     uuid.UUID  `json:"tenantId"`
	Granted      bool       `json:"granted"`
	Notes        string     `json:"notes,omitempty"`
	GrantedAt    *time.Time `json:"grantedAt,omitempty"`
	GrantedBy    string     `json:"grantedBy,omitempty"`
	RevokedAt    *time.Time `json:"revokedAt,omitempty"`
	RevokedBy    string     `json:"revokedBy,omitempty"`
}

// Permission modules used to group the catalog.
const (
	ModuleFinance        = "FINANCE"
	ModuleAdmin          = "ADMIN"
	ModuleUserManagement = "USER_MANAGEMENT"
	ModuleReports        = "REPORTS"
	ModuleSystem         = "SYSTEM"
	ModuleProduction     = "PRODUCTION"
)

// Modules lists the module tabs in display order.
func Modules() []string {
	return []string{
		ModuleFinance,
		ModuleAdmin,
		ModuleUserManagement,
		ModuleReports,
		ModuleSystem,
		ModuleProduction,
	}
}

// ByModule returns the permissions tagged with module, keeping catalog order.
func ByModule(perms []Permission, module string) []Permission {
	module = NormalizeModule(module)
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if p.Module == module {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeModule canonicalises a module tag as typed by an operator, e.g. " production ".
func NormalizeModule(module string) string {
	return strings.ToUpper(strings.TrimSpace(module))
}

// PermissionIDs collects the permission IDs of grants.
func PermissionIDs(grants []UserPermission) []int64 {
	ids := make([]int64, 0, len(grants))
	for _, g := range grants {
		ids = append(ids, g.PermissionID)
	}
	return ids
}
