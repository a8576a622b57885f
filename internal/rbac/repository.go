package rbac

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
)

// Repository reads and writes permission data on the backend API.
type Repository struct {
	client *apiclient.Client
}

// NewRepository constructs a repository.
func NewRepository(client *apiclient.Client) *Repository {
	return &Repository{client: client}
}

// ListPermissions returns the full catalog.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	var perms []Permission
	if err := r.client.Get(ctx, "/permissions", nil, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

// GetPermission returns one catalog entry.
func (r *Repository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	var perm Permission
	if err := r.client.Get(ctx, "/permissions/"+strconv.FormatInt(id, 10), nil, &perm); err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// SearchPermissions runs a server side catalog search.
func (r *Repository) SearchPermissions(ctx context.Context, query string) ([]Permission, error) {
	var perms []Permission
	if err := r.client.Get(ctx, "/permissions/search", url.Values{"query": {query}}, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

// ListUserPermissions returns the active grants of a user in a tenant.
func (r *Repository) ListUserPermissions(ctx context.Context, userID, tenantID uuid.UUID) ([]UserPermission, error) {
	var grants []UserPermission
	path := fmt.Sprintf("/permissions/user/%s", userID)
	if err := r.client.Get(ctx, path, tenantQuery(tenantID), &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

// GrantPermission grants permissionID to a user.
func (r *Repository) GrantPermission(ctx context.Context, userID uuid.UUID, permissionID int64, tenantID uuid.UUID, notes string) (UserPermission, error) {
	query := tenantQuery(tenantID)
	if notes != "" {
		query.Set("notes", notes)
	}
	var grant UserPermission
	path := fmt.Sprintf("/permissions/users/%s/permissions/%d/grant", userID, permissionID)
	if err := r.client.Post(ctx, path, query, nil, &grant); err != nil {
		return UserPermission{}, err
	}
	return grant, nil
}

// RevokePermission removes permissionID from a user.
func (r *Repository) RevokePermission(ctx context.Context, userID uuid.UUID, permissionID int64, tenantID uuid.UUID) error {
	path := fmt.Sprintf("/permissions/user/%s/permission/%d", userID, permissionID)
	return r.client.Delete(ctx, path, tenantQuery(tenantID))
}

// CheckPermission asks the backend whether a user holds permissionKey.
func (r *Repository) CheckPermission(ctx context.Context, userID uuid.UUID, permissionKey string, tenantID uuid.UUID) (bool, error) {
	var ok bool
	path := fmt.Sprintf("/permissions/users/%s/check-permission/%s", userID, permissionKey)
	if err := r.client.Get(ctx, path, tenantQuery(tenantID), &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func tenantQuery(tenantID uuid.UUID) url.Values {
	return url.Values{"tenantId": {tenantID.String()}}
}
