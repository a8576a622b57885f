package roles

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-console/internal/platform/cache"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
}

// Service is the role catalog client.
type Service struct {
	repo  RepositoryPort
	cache *cache.Catalog
}

// NewService builds Service instance. A nil catalog cache disables caching.
func NewService(repo RepositoryPort, catalogCache *cache.Catalog) *Service {
	return &Service{repo: repo, cache: catalogCache}
}

// ListRoles returns all roles in backend order.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	err := s.cache.FetchJSON(ctx, s.cache.Key("roles"), &roles, func(ctx context.Context) (any, error) {
		return s.repo.ListRoles(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	return roles, nil
}

// GetRole returns one role.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, fmt.Errorf("roles: get %d: %w", id, err)
	}
	return role, nil
}

// Invalidate drops the cached catalog.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, s.cache.Key("roles"))
}
