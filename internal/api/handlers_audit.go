package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/pinggolf/tile-supply-planner/internal/db"
)

// handleListAuditLogs lists audit logs with filtering: the change history
// of drafts, warehouse orders and settings.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := db.GetAuditLogsParams{Limit: 50}
	if v := q.Get("entity_type"); v != "" {
		params.EntityType = sql.NullString{String: v, Valid: true}
	}
	if v := q.Get("operation"); v != "" {
		params.Operation = sql.NullString{String: v, Valid: true}
	}
	if v := q.Get("user_id"); v != "" {
		params.UserID = sql.NullString{String: v, Valid: true}
	}
	if v := q.Get("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.StartTime = sql.NullTime{Time: t, Valid: true}
		}
	}
	if v := q.Get("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.EndTime = sql.NullTime{Time: t, Valid: true}
		}
	}
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			params.Limit = int32(parsed)
		}
	}

	logs, err := s.store.GetAuditLogs(r.Context(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
