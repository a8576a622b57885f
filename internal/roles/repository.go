package roles

import (
	"context"
	"strconv"

	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
)

// Repository reads roles from the backend API.
type Repository struct {
	client *apiclient.Client
}

// NewRepository constructs a repository.
func NewRepository(client *apiclient.Client) *Repository {
	return &Repository{client: client}
}

// ListRoles returns all roles.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := r.client.Get(ctx, "/roles", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole returns one role.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	if err := r.client.Get(ctx, "/roles/"+strconv.FormatInt(id, 10), nil, &role); err != nil {
		return Role{}, err
	}
	return role, nil
}
