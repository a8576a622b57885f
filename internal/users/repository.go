package users

import (
	"context"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
	"github.com/odyssey-erp/odyssey-console/internal/shared"
)

// Repository reads and updates users on the backend API.
type Repository struct {
	client *apiclient.Client
}

// NewRepository constructs a repository.
func NewRepository(client *apiclient.Client) *Repository {
	return &Repository{client: client}
}

// ListUsers returns one page of users.
func (r *Repository) ListUsers(ctx context.Context, page, size int) (shared.Page[User], error) {
	var out shared.Page[User]
	query := url.Values{
		"page": {strconv.Itoa(page)},
		"size": {strconv.Itoa(size)},
	}
	if err := r.client.Get(ctx, "/users", query, &out); err != nil {
		return shared.Page[User]{}, err
	}
	return out, nil
}

// GetUser returns one user.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	if err := r.client.Get(ctx, "/users/"+id.String(), nil, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// UpdateUser replaces the user record.
func (r *Repository) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateRequest) (User, error) {
	var u User
	if err := r.client.Put(ctx, "/users/"+id.String(), nil, req, &u); err != nil {
		return User{}, err
	}
	return u, nil
}
