// Package console drives the authorization editing workflow for one operator: pick a user,
// toggle permissions and roles in memory, then save through the reconciliation engine.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
	"github.com/odyssey-erp/odyssey-console/internal/rbac"
	"github.com/odyssey-erp/odyssey-console/internal/reconcile"
	"github.com/odyssey-erp/odyssey-console/internal/roles"
	"github.com/odyssey-erp/odyssey-console/internal/users"
)

var (
	ErrNoUserSelected    = errors.New("console: no user selected")
	ErrSaveInProgress    = errors.New("console: save in progress")
	ErrNoChanges         = errors.New("console: no changes to save")
	ErrUnknownPermission = errors.New("console: unknown permission")
	ErrUnknownRole       = errors.New("console: unknown role")
)

// State is the controller's position in the editing workflow.
type State string

// Controller states.
const (
	StateNoUserSelected State = "no_user_selected"
	StateClean          State = "clean"
	StateDirty          State = "dirty"
	StateSaving         State = "saving"
)

// UserReader loads user records.
type UserReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (users.User, error)
}

// GrantReader loads a user's current grants.
type GrantReader interface {
	GetGrants(ctx context.Context, userID, tenantID uuid.UUID) ([]rbac.UserPermission, error)
}

// Reconciler plans and applies authorization changes.
type Reconciler interface {
	Plan(req reconcile.Request) reconcile.Plan
	Reconcile(ctx context.Context, req reconcile.Request) reconcile.Result
}

// Option customises a Controller.
type Option func(*Controller)

// WithTenant scopes grant reads and writes to tenantID instead of the selected user's tenant.
func WithTenant(tenantID uuid.UUID) Option {
	return func(c *Controller) { c.tenantID = tenantID }
}

// WithActor names the operator in the run journal.
func WithActor(actor string) Option {
	return func(c *Controller) { c.actor = actor }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller holds the transient edit state of one operator. Its methods are safe for concurrent
// use; the lock is not held during backend calls.
type Controller struct {
	users    UserReader
	grants   GrantReader
	engine   Reconciler
	tenantID uuid.UUID
	actor    string
	logger   *slog.Logger

	mu           sync.Mutex
	catalogs     Catalogs
	state        State
	user         users.User
	actual       []rbac.UserPermission
	actualRoles  reconcile.IDSet
	desired      reconcile.IDSet
	desiredRoles reconcile.IDSet
	notes        string
	banner       *Banner
	lastSave     []reconcile.Outcome
	selectSeq    uint64
}

// NewController builds a controller with no user selected.
func NewController(catalogs Catalogs, userReader UserReader, grants GrantReader, engine Reconciler, opts ...Option) *Controller {
	c := &Controller{
		users:        userReader,
		grants:       grants,
		engine:       engine,
		logger:       slog.New(slog.DiscardHandler),
		catalogs:     catalogs,
		state:        StateNoUserSelected,
		actualRoles:  reconcile.NewIDSet(),
		desired:      reconcile.NewIDSet(),
		desiredRoles: reconcile.NewIDSet(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCatalogs replaces the reference data.
func (c *Controller) SetCatalogs(catalogs Catalogs) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalogs = catalogs
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SelectUser loads a user and their grants and seeds the desired state from them, discarding
// unsaved edits. On failure nothing changes except the banner.
func (c *Controller) SelectUser(ctx context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	if c.state == StateSaving {
		c.mu.Unlock()
		return ErrSaveInProgress
	}
	c.selectSeq++
	seq := c.selectSeq
	c.mu.Unlock()

	u, grants, err := c.load(ctx, userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.selectSeq {
		// A later selection owns the controller now.
		return nil
	}
	if c.state == StateSaving {
		return ErrSaveInProgress
	}
	if err != nil {
		c.banner = errorBanner("Could not load user: " + apiclient.UserMessage(err))
		c.logger.Warn("select user failed", slog.String("user", userID.String()), slog.Any("error", err))
		return err
	}
	c.applyActual(u, grants)
	c.resetDesired()
	c.notes = ""
	c.banner = nil
	c.lastSave = nil
	c.state = StateClean
	return nil
}

func (c *Controller) load(ctx context.Context, userID uuid.UUID) (users.User, []rbac.UserPermission, error) {
	u, err := c.users.GetUser(ctx, userID)
	if err != nil {
		return users.User{}, nil, err
	}
	grants, err := c.grants.GetGrants(ctx, u.ID, c.tenantFor(u))
	if err != nil {
		return users.User{}, nil, err
	}
	return u, grants, nil
}

// TogglePermission flips the desired grant of a permission.
func (c *Controller) TogglePermission(id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return false, err
	}
	if len(c.catalogs.Permissions) > 0 && !c.catalogs.hasPermission(id) {
		return false, fmt.Errorf("%w: %d", ErrUnknownPermission, id)
	}
	granted := c.desired.Toggle(id)
	c.state = StateDirty
	return granted, nil
}

// SetPermission sets the desired grant of a permission.
func (c *Controller) SetPermission(id int64, granted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return err
	}
	if len(c.catalogs.Permissions) > 0 && !c.catalogs.hasPermission(id) {
		return fmt.Errorf("%w: %d", ErrUnknownPermission, id)
	}
	if c.desired.Has(id) == granted {
		return nil
	}
	if granted {
		c.desired.Add(id)
	} else {
		c.desired.Remove(id)
	}
	c.state = StateDirty
	return nil
}

// ToggleRole flips the desired assignment of a role.
func (c *Controller) ToggleRole(id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return false, err
	}
	if len(c.catalogs.Roles) > 0 && !c.catalogs.hasRole(id) {
		return false, fmt.Errorf("%w: %d", ErrUnknownRole, id)
	}
	assigned := c.desiredRoles.Toggle(id)
	c.state = StateDirty
	return assigned, nil
}

// SetRole sets the desired assignment of a role.
func (c *Controller) SetRole(id int64, assigned bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return err
	}
	if len(c.catalogs.Roles) > 0 && !c.catalogs.hasRole(id) {
		return fmt.Errorf("%w: %d", ErrUnknownRole, id)
	}
	if c.desiredRoles.Has(id) == assigned {
		return nil
	}
	if assigned {
		c.desiredRoles.Add(id)
	} else {
		c.desiredRoles.Remove(id)
	}
	c.state = StateDirty
	return nil
}

// SetDesired replaces both desired sets in one step. IDs outside the catalog that the user
// currently holds are dropped unless listed. Unknown IDs are rejected when the catalog is loaded.
func (c *Controller) SetDesired(permissionIDs, roleIDs []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return err
	}
	perms := reconcile.NewIDSet(permissionIDs...)
	roleSet := reconcile.NewIDSet(roleIDs...)
	if len(c.catalogs.Permissions) > 0 {
		for _, id := range perms.Sorted() {
			if !c.catalogs.hasPermission(id) && !c.desired.Has(id) {
				return fmt.Errorf("%w: %d", ErrUnknownPermission, id)
			}
		}
	}
	if len(c.catalogs.Roles) > 0 {
		for _, id := range roleSet.Sorted() {
			if !c.catalogs.hasRole(id) && !c.desiredRoles.Has(id) {
				return fmt.Errorf("%w: %d", ErrUnknownRole, id)
			}
		}
	}
	if perms.Equal(c.desired) && roleSet.Equal(c.desiredRoles) {
		return nil
	}
	c.desired = perms
	c.desiredRoles = roleSet
	c.state = StateDirty
	return nil
}

// SetNotes sets the note attached to grants made by the next save.
func (c *Controller) SetNotes(notes string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return err
	}
	c.notes = notes
	return nil
}

// Reset reseeds the desired state from the last fetched actual state. No backend call is made.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return err
	}
	c.resetDesired()
	c.state = StateClean
	return nil
}

// Plan previews the calls a save would make.
func (c *Controller) Plan() (reconcile.Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateNoUserSelected {
		return reconcile.Plan{}, ErrNoUserSelected
	}
	return c.engine.Plan(c.request()), nil
}

// Save reconciles the desired state. It runs only from dirty and always leaves Saving: to clean
// against reloaded state, or back to dirty with edits kept when the reload did not happen.
func (c *Controller) Save(ctx context.Context) (reconcile.Result, error) {
	c.mu.Lock()
	switch c.state {
	case StateNoUserSelected:
		c.mu.Unlock()
		return reconcile.Result{}, ErrNoUserSelected
	case StateSaving:
		c.mu.Unlock()
		return reconcile.Result{}, ErrSaveInProgress
	case StateClean:
		c.mu.Unlock()
		return reconcile.Result{}, ErrNoChanges
	}
	req := c.request()
	c.state = StateSaving
	c.mu.Unlock()

	res := c.engine.Reconcile(ctx, req)
	err := res.Err()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSave = res.Outcomes
	if res.Reloaded {
		c.applyActual(res.User, res.Grants)
		c.resetDesired()
		c.notes = ""
		c.state = StateClean
	} else {
		c.state = StateDirty
	}
	switch {
	case err == nil:
		c.banner = successBanner(fmt.Sprintf("Permissions and roles of %s updated", req.User.DisplayName()))
	case errors.Is(err, apiclient.ErrAuth):
		c.banner = errorBanner("Session expired, sign in again")
	case errors.Is(err, reconcile.ErrPartialFailure):
		c.banner = errorBanner(fmt.Sprintf("Failed to save permissions and roles: %d of %d changes failed", len(res.Failed()), len(res.Outcomes)))
	default:
		c.banner = errorBanner("Changes sent but the current state could not be reloaded: " + apiclient.UserMessage(err))
	}
	return res, err
}

// DismissBanner clears the banner.
func (c *Controller) DismissBanner() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.banner = nil
}

func (c *Controller) editable() error {
	switch c.state {
	case StateNoUserSelected:
		return ErrNoUserSelected
	case StateSaving:
		return ErrSaveInProgress
	}
	return nil
}

func (c *Controller) request() reconcile.Request {
	return reconcile.Request{
		User:         c.user,
		TenantID:     c.tenantFor(c.user),
		Desired:      c.desired.Clone(),
		DesiredRoles: c.desiredRoles.Clone(),
		Actual:       append([]rbac.UserPermission(nil), c.actual...),
		Notes:        c.notes,
		Actor:        c.actor,
	}
}

func (c *Controller) tenantFor(u users.User) uuid.UUID {
	if c.tenantID != uuid.Nil {
		return c.tenantID
	}
	return u.TenantID
}

func (c *Controller) applyActual(u users.User, grants []rbac.UserPermission) {
	c.user = u
	c.actual = grants
	if len(u.RoleIDs) > 0 {
		c.actualRoles = reconcile.NewIDSet(u.RoleIDs...)
	} else {
		c.actualRoles = reconcile.NewIDSet(roles.IDsForNames(c.catalogs.Roles, u.Roles)...)
	}
}

func (c *Controller) resetDesired() {
	c.desired = reconcile.ActualIDs(c.actual)
	c.desiredRoles = c.actualRoles.Clone()
}
