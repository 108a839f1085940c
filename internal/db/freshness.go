package db

import (
	"context"

	"github.com/pinggolf/tile-supply-planner/internal/apperr"
)

// sourceTables maps a freshness source name to its snapshot_date/timestamp
// column, mirroring the independent-source model of ListInventorySnapshots.
var sourceTables = []struct {
	source string
	table  string
	dateCo string
}{
	{"warehouse", "warehouse_snapshots", "snapshot_date"},
	{"factory", "factory_snapshots", "snapshot_date"},
	{"transit", "transit_snapshots", "snapshot_date"},
	{"sales", "sales", "week_start"},
	{"production_schedule", "production_schedule", "created_at"},
	{"boat_schedules", "boat_schedules", "departure_date"},
	{"customer_patterns", "customer_patterns", "last_order_date"},
}

// GetDataFreshness reports the most recent timestamp and row count seen in
// each independently-uploaded source table.
func (s *Store) GetDataFreshness(ctx context.Context) ([]SourceFreshness, error) {
	out := make([]SourceFreshness, 0, len(sourceTables))
	for _, t := range sourceTables {
		var f SourceFreshness
		f.Source = t.source
		query := `SELECT MAX(` + t.dateCo + `), COUNT(*) FROM ` + t.table
		if err := s.db.QueryRowContext(ctx, query).Scan(&f.LastUpdate, &f.RowCount); err != nil {
			return nil, apperr.Wrap("get data freshness for "+t.source, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// ListUploadHistory returns the most recent ingestion runs recorded in
// upload_history, newest first.
func (s *Store) ListUploadHistory(ctx context.Context, limit int) ([]UploadHistoryEntry, error) {
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, filename, uploaded_at, rows_imported, status, error_detail
		FROM upload_history
		ORDER BY uploaded_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apperr.Wrap("list upload history", err)
	}
	defer rows.Close()

	var out []UploadHistoryEntry
	for rows.Next() {
		var u UploadHistoryEntry
		if err := rows.Scan(&u.ID, &u.Source, &u.Filename, &u.UploadedAt,
			&u.RowsImported, &u.Status, &u.ErrorDetail); err != nil {
			return nil, apperr.Wrap("scan upload history entry", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
