package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-console/internal/platform/db"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS authz_audit_logs (
	id BIGSERIAL PRIMARY KEY,
	actor_id TEXT NOT NULL,
	action TEXT NOT NULL,
	entity TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	tenant_id UUID,
	meta JSONB NOT NULL DEFAULT '{}'::jsonb,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS authz_audit_items (
	log_id BIGINT NOT NULL REFERENCES authz_audit_logs(id) ON DELETE CASCADE,
	action TEXT NOT NULL,
	permission_id BIGINT NOT NULL,
	outcome TEXT NOT NULL,
	error TEXT
);`

// AuditItem is one call made on behalf of an audited action.
type AuditItem struct {
	Action       string
	PermissionID int64
	Outcome      string
	Error        string
}

// AuditLog represents an operator action written to the journal.
type AuditLog struct {
	ActorID  string
	Action   string
	Entity   string
	EntityID string
	TenantID uuid.UUID
	Meta     map[string]any
	Items    []AuditItem
	At       time.Time
}

// AuditLogger writes operator actions into the authorization journal.
type AuditLogger struct {
	pool db.TxBeginner
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool db.TxBeginner) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// EnsureSchema creates the journal tables when missing.
func (l *AuditLogger) EnsureSchema(ctx context.Context) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	return db.WithTx(ctx, l.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, auditSchema)
		return err
	})
}

// Record persists the log entry together with its items in one transaction.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.Meta == nil {
		log.Meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	var tenant *uuid.UUID
	if log.TenantID != uuid.Nil {
		tenant = &log.TenantID
	}
	return db.WithTx(ctx, l.pool, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `INSERT INTO authz_audit_logs (actor_id, action, entity, entity_id, tenant_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW())) RETURNING id`,
			log.ActorID, log.Action, log.Entity, log.EntityID, tenant, metaJSON, at).Scan(&id)
		if err != nil {
			return err
		}
		if len(log.Items) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, item := range log.Items {
			batch.Queue(`INSERT INTO authz_audit_items (log_id, action, permission_id, outcome, error) VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
				id, item.Action, item.PermissionID, item.Outcome, item.Error)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}
