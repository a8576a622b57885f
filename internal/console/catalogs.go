package console

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-console/internal/rbac"
	"github.com/odyssey-erp/odyssey-console/internal/roles"
)

// PermissionCatalog lists definable permissions.
type PermissionCatalog interface {
	ListPermissions(ctx context.Context) ([]rbac.Permission, error)
}

// RoleCatalog lists assignable roles.
type RoleCatalog interface {
	ListRoles(ctx context.Context) ([]roles.Role, error)
}

// Catalogs is the reference data a controller edits against.
type Catalogs struct {
	Permissions []rbac.Permission
	Roles       []roles.Role
}

// LoadCatalogs fetches both catalogs concurrently.
func LoadCatalogs(ctx context.Context, perms PermissionCatalog, roleCatalog RoleCatalog) (Catalogs, error) {
	var out Catalogs
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := perms.ListPermissions(ctx)
		if err != nil {
			return fmt.Errorf("console: load permissions: %w", err)
		}
		out.Permissions = list
		return nil
	})
	g.Go(func() error {
		list, err := roleCatalog.ListRoles(ctx)
		if err != nil {
			return fmt.Errorf("console: load roles: %w", err)
		}
		out.Roles = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return Catalogs{}, err
	}
	return out, nil
}

func (c Catalogs) hasPermission(id int64) bool {
	for _, p := range c.Permissions {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (c Catalogs) hasRole(id int64) bool {
	for _, r := range c.Roles {
		if r.ID == id {
			return true
		}
	}
	return false
}
