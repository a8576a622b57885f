package console

import (
	"github.com/odyssey-erp/odyssey-console/internal/rbac"
	"github.com/odyssey-erp/odyssey-console/internal/reconcile"
	"github.com/odyssey-erp/odyssey-console/internal/roles"
	"github.com/odyssey-erp/odyssey-console/internal/users"
)

// BannerKind classifies a banner.
type BannerKind string

// Banner kinds.
const (
	BannerError   BannerKind = "error"
	BannerSuccess BannerKind = "success"
)

// Banner is the message shown above the editor.
type Banner struct {
	Kind    BannerKind `json:"kind"`
	Message string     `json:"message"`
}

func errorBanner(msg string) *Banner {
	return &Banner{Kind: BannerError, Message: msg}
}

func successBanner(msg string) *Banner {
	return &Banner{Kind: BannerSuccess, Message: msg}
}

// PermissionRow is a catalog permission with its desired grant.
type PermissionRow struct {
	rbac.Permission
	Granted bool `json:"granted"`
	Changed bool `json:"changed"`
}

// RoleRow is a catalog role with its desired assignment.
type RoleRow struct {
	roles.Role
	Checked bool `json:"checked"`
	Changed bool `json:"changed"`
}

// OutcomeView is a save outcome ready for display.
type OutcomeView struct {
	Action       reconcile.Action `json:"action"`
	PermissionID int64            `json:"permissionId,omitempty"`
	Status       string           `json:"status"`
	Error        string           `json:"error,omitempty"`
}

// Snapshot is an immutable copy of what the editor shows.
type Snapshot struct {
	State       State           `json:"state"`
	User        *users.User     `json:"user,omitempty"`
	Modules     []string        `json:"modules"`
	Permissions []PermissionRow `json:"permissions"`
	Roles       []RoleRow       `json:"roles"`
	Pending     *reconcile.Plan `json:"pending,omitempty"`
	Banner      *Banner         `json:"banner,omitempty"`
	LastSave    []OutcomeView   `json:"lastSave,omitempty"`
}

// Snapshot projects the editor state. query and module filter the permission rows only.
func (c *Controller) Snapshot(query, module string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:       c.state,
		Modules:     rbac.Modules(),
		Permissions: c.permissionRows(query, module),
		Roles:       c.roleRows(),
	}
	if c.state != StateNoUserSelected {
		u := c.user
		snap.User = &u
		plan := c.engine.Plan(c.request())
		snap.Pending = &plan
	}
	if c.banner != nil {
		b := *c.banner
		snap.Banner = &b
	}
	for _, o := range c.lastSave {
		v := OutcomeView{Action: o.Action, PermissionID: o.PermissionID, Status: o.Status()}
		if o.Err != nil {
			v.Error = o.Err.Error()
		}
		snap.LastSave = append(snap.LastSave, v)
	}
	return snap
}

// Permissions returns the permission rows matching query and module.
func (c *Controller) Permissions(query, module string) []PermissionRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permissionRows(query, module)
}

func (c *Controller) permissionRows(query, module string) []PermissionRow {
	actual := reconcile.ActualIDs(c.actual)
	filtered := rbac.Filter(c.catalogs.Permissions, query, module)
	rows := make([]PermissionRow, 0, len(filtered))
	for _, p := range filtered {
		granted := c.desired.Has(p.ID)
		rows = append(rows, PermissionRow{Permission: p, Granted: granted, Changed: granted != actual.Has(p.ID)})
	}
	return rows
}

func (c *Controller) roleRows() []RoleRow {
	rows := make([]RoleRow, 0, len(c.catalogs.Roles))
	for _, r := range c.catalogs.Roles {
		checked := c.desiredRoles.Has(r.ID)
		rows = append(rows, RoleRow{Role: r, Checked: checked, Changed: checked != c.actualRoles.Has(r.ID)})
	}
	return rows
}
