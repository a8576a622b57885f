package users

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-console/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, page, size int) (shared.Page[User], error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req UpdateRequest) (User, error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns one zero-based page of users.
func (s *Service) ListUsers(ctx context.Context, page, size int) (shared.Page[User], error) {
	page, size = shared.NormalizePage(page, size)
	out, err := s.repo.ListUsers(ctx, page, size)
	if err != nil {
		return shared.Page[User]{}, fmt.Errorf("users: list: %w", err)
	}
	return out, nil
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, fmt.Errorf("users: get %s: %w", id, err)
	}
	return u, nil
}

// UpdateUser replaces the user record.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateRequest) (User, error) {
	u, err := s.repo.UpdateUser(ctx, id, req)
	if err != nil {
		return User{}, fmt.Errorf("users: update %s: %w", id, err)
	}
	return u, nil
}

// AssignRoles replaces the roles of u with roleIDs in one update, passing every other field of
// the loaded record through unchanged.
func (s *Service) AssignRoles(ctx context.Context, u User, roleIDs []int64) (User, error) {
	req := UpdateFromUser(u, roleIDs)
	slices.Sort(req.RoleIDs)
	return s.UpdateUser(ctx, u.ID, req)
}
