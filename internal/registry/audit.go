package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// AuditTrail records every lifecycle transition. Entries are immutable once
// written; a failed append aborts the transition that triggered it.
type AuditTrail struct {
	store  AuditStore
	logger *zap.Logger
}

// NewAuditTrail creates an audit trail over the given store
func NewAuditTrail(store AuditStore, logger *zap.Logger) *AuditTrail {
	return &AuditTrail{store: store, logger: logger}
}

// Record appends one entry for a transition. Details are marshalled to JSON;
// a nil details map is stored as an empty object.
func (t *AuditTrail) Record(ctx context.Context, projectID, actor string, action AuditAction, details map[string]interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	entry := &AuditLogEntry{
		ProjectID: projectID,
		Actor:     actor,
		Action:    action,
		Details:   datatypes.JSON(payload),
		CreatedAt: time.Now(),
	}
	if err := t.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	t.logger.Info("audit entry recorded",
		zap.String("project_id", projectID),
		zap.String("actor", actor),
		zap.String("action", string(action)),
	)
	return nil
}

// ByProject returns the ordered audit trail for one project, oldest first
func (t *AuditTrail) ByProject(ctx context.Context, projectID string) ([]AuditLogEntry, error) {
	return t.store.ByProject(ctx, projectID)
}

// Recent returns the newest entries across all projects
func (t *AuditTrail) Recent(ctx context.Context, limit int) ([]AuditLogEntry, error) {
	return t.store.Recent(ctx, limit)
}
