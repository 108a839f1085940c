package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pinggolf/tile-supply-planner/internal/db"
)

// AuditService provides audit logging for draft and warehouse-order
// lifecycle mutations, and for the user and system settings changes
// that SettingsService records through it.
type AuditService struct {
	store *db.Store
}

func NewAuditService(store *db.Store) *AuditService {
	return &AuditService{store: store}
}

// AuditParams contains all fields for an audit log entry.
type AuditParams struct {
	EntityType string
	Operation  string
	EntityID   string
	UserID     string
	UserName   string
	Metadata   map[string]interface{}
	IPAddress  string
	UserAgent  string
}

func (s *AuditService) Log(ctx context.Context, params AuditParams) error {
	var metadataJSON []byte
	var err error
	if params.Metadata != nil {
		metadataJSON, err = json.Marshal(params.Metadata)
		if err != nil {
			return err
		}
	}

	return s.store.CreateAuditLog(ctx, db.CreateAuditLogParams{
		EntityType: params.EntityType,
		EntityID:   sql.NullString{String: params.EntityID, Valid: params.EntityID != ""},
		Operation:  params.Operation,
		UserID:     sql.NullString{String: params.UserID, Valid: params.UserID != ""},
		UserName:   sql.NullString{String: params.UserName, Valid: params.UserName != ""},
		Metadata:   metadataJSON,
		IPAddress:  sql.NullString{String: params.IPAddress, Valid: params.IPAddress != ""},
		UserAgent:  sql.NullString{String: params.UserAgent, Valid: params.UserAgent != ""},
	})
}

// QueryAuditLog retrieves audit logs with flexible filtering.
func (s *AuditService) QueryAuditLog(
	ctx context.Context,
	entityType, operation, userID string,
	startTime, endTime time.Time,
	limit int,
) ([]db.AuditLog, error) {
	return s.store.GetAuditLogs(ctx, db.GetAuditLogsParams{
		EntityType: sql.NullString{String: entityType, Valid: entityType != ""},
		Operation:  sql.NullString{String: operation, Valid: operation != ""},
		UserID:     sql.NullString{String: userID, Valid: userID != ""},
		StartTime:  sql.NullTime{Time: startTime, Valid: !startTime.IsZero()},
		EndTime:    sql.NullTime{Time: endTime, Valid: !endTime.IsZero()},
		Limit:      int32(limit),
	})
}
