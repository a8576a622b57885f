package reconcile_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-console/internal/rbac"
	"github.com/odyssey-erp/odyssey-console/internal/users"
)

var (
	userID   = uuid.MustParse("8d1f4a52-5f7c-4b53-a9a5-1f3b0a0e6c11")
	tenantID = uuid.MustParse("0f6e3a8e-9a43-4f62-8d2b-6f7e1c2a9b10")
)

// backend is an in-memory stand-in for the grant and user endpoints.
type backend struct {
	mu        sync.Mutex
	granted   map[int64]bool
	user      users.User
	failGrant map[int64]error
	failRevok map[int64]error
	failRoles error
	failLoad  error
	calls     []string
	roleSent  [][]int64
	reloads   int
}

func newBackend(granted ...int64) *backend {
	b := &backend{
		granted:   map[int64]bool{},
		failGrant: map[int64]error{},
		failRevok: map[int64]error{},
		user: users.User{
			ID:       userID,
			TenantID: tenantID,
			Username: "maria",
			FullName: "Maria Souza",
			Status:   users.StatusActive,
			Roles:    []string{"OPERATOR"},
		},
	}
	for _, id := range granted {
		b.granted[id] = true
	}
	return b
}

func (b *backend) grants() []rbac.UserPermission {
	out := make([]rbac.UserPermission, 0, len(b.granted))
	for id := range b.granted {
		out = append(out, rbac.UserPermission{UserID: userID, PermissionID: id, TenantID: tenantID, Granted: true})
	}
	return out
}

func (b *backend) GetGrants(_ context.Context, _, _ uuid.UUID) ([]rbac.UserPermission, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reloads++
	if b.failLoad != nil {
		return nil, b.failLoad
	}
	return b.grants(), nil
}

func (b *backend) Grant(_ context.Context, _ uuid.UUID, id int64, _ uuid.UUID, notes string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf("grant %d", id))
	if err := b.failGrant[id]; err != nil {
		return err
	}
	b.granted[id] = true
	return nil
}

func (b *backend) Revoke(_ context.Context, _ uuid.UUID, id int64, _ uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf("revoke %d", id))
	if err := b.failRevok[id]; err != nil {
		return err
	}
	delete(b.granted, id)
	return nil
}

func (b *backend) GetUser(_ context.Context, _ uuid.UUID) (users.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failLoad != nil {
		return users.User{}, b.failLoad
	}
	return b.user, nil
}

func (b *backend) AssignRoles(_ context.Context, u users.User, roleIDs []int64) (users.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "roles")
	b.roleSent = append(b.roleSent, append([]int64(nil), roleIDs...))
	if b.failRoles != nil {
		return users.User{}, b.failRoles
	}
	b.user = u
	b.user.RoleIDs = append([]int64(nil), roleIDs...)
	return b.user, nil
}

type observer struct {
	calls map[string]int
	runs  []string
}

func (o *observer) ObserveCall(action, outcome string) {
	if o.calls == nil {
		o.calls = map[string]int{}
	}
	o.calls[action+"/"+outcome]++
}

func (o *observer) ObserveRun(outcome string, _ time.Duration) {
	o.runs = append(o.runs, outcome)
}
