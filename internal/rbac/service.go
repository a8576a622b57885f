package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
	"github.com/odyssey-erp/odyssey-console/internal/platform/cache"
)

// ErrTenantRequired indicates no tenant was given or found on the request scope.
var ErrTenantRequired = fmt.Errorf("rbac: tenant required: %w", apiclient.ErrValidation)

// CatalogPort reads the permission catalog.
type CatalogPort interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	SearchPermissions(ctx context.Context, query string) ([]Permission, error)
}

// GrantPort reads and writes user grants.
type GrantPort interface {
	ListUserPermissions(ctx context.Context, userID, tenantID uuid.UUID) ([]UserPermission, error)
	GrantPermission(ctx context.Context, userID uuid.UUID, permissionID int64, tenantID uuid.UUID, notes string) (UserPermission, error)
	RevokePermission(ctx context.Context, userID uuid.UUID, permissionID int64, tenantID uuid.UUID) error
	CheckPermission(ctx context.Context, userID uuid.UUID, permissionKey string, tenantID uuid.UUID) (bool, error)
}

// Service is the permission catalog client.
type Service struct {
	repo  CatalogPort
	cache *cache.Catalog
}

// NewService builds a Service. A nil catalog cache disables caching.
func NewService(repo CatalogPort, catalogCache *cache.Catalog) *Service {
	return &Service{repo: repo, cache: catalogCache}
}

// ListPermissions returns the catalog in backend order.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	var perms []Permission
	err := s.cache.FetchJSON(ctx, s.cache.Key("permissions"), &perms, func(ctx context.Context) (any, error) {
		return s.repo.ListPermissions(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	return perms, nil
}

// GetPermission fetches one catalog entry.
func (s *Service) GetPermission(ctx context.Context, id int64) (Permission, error) {
	perm, err := s.repo.GetPermission(ctx, id)
	if err != nil {
		return Permission{}, fmt.Errorf("rbac: get permission %d: %w", id, err)
	}
	return perm, nil
}

// SearchPermissions asks the backend for matching permissions. An empty query lists all.
func (s *Service) SearchPermissions(ctx context.Context, query string) ([]Permission, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListPermissions(ctx)
	}
	perms, err := s.repo.SearchPermissions(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rbac: search permissions: %w", err)
	}
	return perms, nil
}

// Modules lists the module tabs.
func (s *Service) Modules() []string {
	return Modules()
}

// Invalidate drops the cached catalog.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, s.cache.Key("permissions"))
}

// GrantService fetches and changes the grants of one user.
type GrantService struct {
	repo GrantPort
}

// NewGrantService builds a GrantService.
func NewGrantService(repo GrantPort) *GrantService {
	return &GrantService{repo: repo}
}

// GetGrants returns the user's active grants. Every returned entry counts as granted.
func (s *GrantService) GetGrants(ctx context.Context, userID, tenantID uuid.UUID) ([]UserPermission, error) {
	tenantID, err := resolveTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	grants, err := s.repo.ListUserPermissions(ctx, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("rbac: get grants of %s: %w", userID, err)
	}
	return grants, nil
}

// Grant gives permissionID to the user.
func (s *GrantService) Grant(ctx context.Context, userID uuid.UUID, permissionID int64, tenantID uuid.UUID, notes string) error {
	tenantID, err := resolveTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if _, err := s.repo.GrantPermission(ctx, userID, permissionID, tenantID, strings.TrimSpace(notes)); err != nil {
		return fmt.Errorf("rbac: grant %d: %w", permissionID, err)
	}
	return nil
}

// Revoke takes permissionID away from the user.
func (s *GrantService) Revoke(ctx context.Context, userID uuid.UUID, permissionID int64, tenantID uuid.UUID) error {
	tenantID, err := resolveTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := s.repo.RevokePermission(ctx, userID, permissionID, tenantID); err != nil {
		return fmt.Errorf("rbac: revoke %d: %w", permissionID, err)
	}
	return nil
}

// Check reports whether the user holds permissionKey.
func (s *GrantService) Check(ctx context.Context, userID uuid.UUID, permissionKey string, tenantID uuid.UUID) (bool, error) {
	tenantID, err := resolveTenant(ctx, tenantID)
	if err != nil {
		return false, err
	}
	ok, err := s.repo.CheckPermission(ctx, userID, strings.TrimSpace(permissionKey), tenantID)
	if err != nil {
		return false, fmt.Errorf("rbac: check %s: %w", permissionKey, err)
	}
	return ok, nil
}

// resolveTenant falls back to the operator's tenant carried on ctx.
func resolveTenant(ctx context.Context, tenantID uuid.UUID) (uuid.UUID, error) {
	if tenantID != uuid.Nil {
		return tenantID, nil
	}
	raw := apiclient.TenantFromContext(ctx)
	if raw == "" {
		return uuid.Nil, ErrTenantRequired
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrTenantRequired, err)
	}
	return id, nil
}
