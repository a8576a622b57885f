package reconcile

import (
	"context"

	"github.com/odyssey-erp/odyssey-console/internal/shared"
)

// AuditWriter persists journal entries. Satisfied by *shared.AuditLogger.
type AuditWriter interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Journal records runs into the authorization audit log.
type Journal struct {
	writer AuditWriter
}

// NewJournal wraps writer.
func NewJournal(writer AuditWriter) *Journal {
	return &Journal{writer: writer}
}

// RecordRun implements Recorder.
func (j *Journal) RecordRun(ctx context.Context, actor string, res Result) error {
	items := make([]shared.AuditItem, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		if o.Action == ActionRoles {
			continue
		}
		item := shared.AuditItem{Action: string(o.Action), PermissionID: o.PermissionID, Outcome: o.Status()}
		if o.Err != nil {
			item.Error = o.Err.Error()
		}
		items = append(items, item)
	}
	meta := map[string]any{
		"role_ids":     res.Plan.RoleIDs,
		"roles":        OutcomeOK,
		"reloaded":     res.Reloaded,
		"elapsed_ms":   res.Elapsed.Milliseconds(),
		"grant_count":  len(res.Plan.Grant),
		"revoke_count": len(res.Plan.Revoke),
	}
	if err := res.RolesErr(); err != nil {
		meta["roles"] = err.Error()
	}
	if res.ReloadErr != nil {
		meta["reload_error"] = res.ReloadErr.Error()
	}
	if actor == "" {
		actor = "unknown"
	}
	return j.writer.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   "authz.reconcile",
		Entity:   "user",
		EntityID: res.Plan.UserID.String(),
		TenantID: res.Plan.TenantID,
		Meta:     meta,
		Items:    items,
	})
}
