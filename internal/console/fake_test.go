package console_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-console/internal/console"
	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
	"github.com/odyssey-erp/odyssey-console/internal/rbac"
	"github.com/odyssey-erp/odyssey-console/internal/reconcile"
	"github.com/odyssey-erp/odyssey-console/internal/roles"
	"github.com/odyssey-erp/odyssey-console/internal/users"
)

var (
	tenantID = uuid.MustParse("0f6e3a8e-9a43-4f62-8d2b-6f7e1c2a9b10")
	mariaID  = uuid.MustParse("8d1f4a52-5f7c-4b53-a9a5-1f3b0a0e6c11")
	joaoID   = uuid.MustParse("2b7c1e90-4d3a-4c8e-9f10-77aa55cc3321")
)

func testCatalogs() console.Catalogs {
	perms := make([]rbac.Permission, 0, 9)
	for i := int64(1); i <= 9; i++ {
		module := rbac.ModuleAdmin
		if i%2 == 0 {
			module = rbac.ModuleProduction
		}
		perms = append(perms, rbac.Permission{ID: i, PermissionKey: fmt.Sprintf("PERM_%d", i), Description: fmt.Sprintf("Permission %d", i), Module: module})
	}
	return console.Catalogs{
		Permissions: perms,
		Roles: []roles.Role{
			{ID: 1, Name: "ADMIN"},
			{ID: 2, Name: "OPERATOR"},
			{ID: 3, Name: "AUDITOR"},
		},
	}
}

// fakeBackend serves users, grants and writes from memory.
type fakeBackend struct {
	mu        sync.Mutex
	users     map[uuid.UUID]users.User
	granted   map[uuid.UUID]map[int64]bool
	failGrant map[int64]error
	failUser  error
	failLoad  error
	block     chan struct{}
	started   chan struct{}
	userGate  map[uuid.UUID]chan struct{}
	userSeen  chan uuid.UUID
	writes    []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users: map[uuid.UUID]users.User{
			mariaID: {ID: mariaID, TenantID: tenantID, Username: "maria", FullName: "Maria Souza", Status: users.StatusActive, Roles: []string{"OPERATOR"}},
			joaoID:  {ID: joaoID, TenantID: tenantID, Username: "joao", FullName: "João Lima", Status: users.StatusActive, Roles: []string{"ADMIN", "AUDITOR"}},
		},
		granted: map[uuid.UUID]map[int64]bool{
			mariaID: {1: true, 2: true},
			joaoID:  {4: true},
		},
		failGrant: map[int64]error{},
	}
}

func (b *fakeBackend) GetUser(_ context.Context, id uuid.UUID) (users.User, error) {
	if gate, ok := b.userGate[id]; ok {
		b.userSeen <- id
		<-gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failUser != nil {
		return users.User{}, b.failUser
	}
	u, ok := b.users[id]
	if !ok {
		return users.User{}, notFoundErr()
	}
	return u, nil
}

func (b *fakeBackend) GetGrants(_ context.Context, userID, _ uuid.UUID) ([]rbac.UserPermission, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failLoad != nil {
		return nil, b.failLoad
	}
	ids := make([]int64, 0)
	for id := range b.granted[userID] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]rbac.UserPermission, 0, len(ids))
	for _, id := range ids {
		out = append(out, rbac.UserPermission{UserID: userID, PermissionID: id, TenantID: tenantID, Granted: true})
	}
	return out, nil
}

func (b *fakeBackend) Grant(_ context.Context, userID uuid.UUID, id int64, _ uuid.UUID, _ string) error {
	if b.block != nil {
		b.started <- struct{}{}
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, fmt.Sprintf("grant %d", id))
	if err := b.failGrant[id]; err != nil {
		return err
	}
	b.granted[userID][id] = true
	return nil
}

func (b *fakeBackend) Revoke(_ context.Context, userID uuid.UUID, id int64, _ uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, fmt.Sprintf("revoke %d", id))
	delete(b.granted[userID], id)
	return nil
}

func (b *fakeBackend) AssignRoles(_ context.Context, u users.User, roleIDs []int64) (users.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, fmt.Sprintf("roles %v", roleIDs))
	u.RoleIDs = append([]int64(nil), roleIDs...)
	b.users[u.ID] = u
	return u, nil
}

func (b *fakeBackend) writeLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.writes...)
}

func newController(b *fakeBackend) *console.Controller {
	engine := reconcile.NewEngine(b, b)
	return console.NewController(testCatalogs(), b, b, engine, console.WithTenant(tenantID), console.WithActor("admin"))
}

func statusErr(status int) error {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()
	client, err := apiclient.New(srv.URL)
	if err != nil {
		return err
	}
	err = client.Get(context.Background(), "/", nil, nil)
	if err == nil {
		return errors.New("expected failure")
	}
	return err
}

func transportErr() error { return statusErr(http.StatusServiceUnavailable) }

func authErr() error { return statusErr(http.StatusUnauthorized) }

func notFoundErr() error { return statusErr(http.StatusNotFound) }
