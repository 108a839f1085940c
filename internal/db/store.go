package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Store provides typed, read-mostly access to reference data and the two
// mutable ledgers (drafts, warehouse orders). It is C1, the Reference
// Data Store: every other component depends on it; it depends on nothing
// in this module.
type Store struct {
	db *sql.DB

	unitConfigMu    sync.RWMutex
	unitConfigCache map[string]FactoryUnitConfig
}

// New creates a Store over an already-configured connection pool.
func New(db *sql.DB) *Store {
	return &Store{
		db:              db,
		unitConfigCache: make(map[string]FactoryUnitConfig),
	}
}

// DB returns the underlying connection pool, for callers (migrations,
// bulk ingestion) that need raw access outside the typed surface.
func (s *Store) DB() *sql.DB { return s.db }

// FactoryUnitConfig is the small, infrequently-changing per-factory
// configuration the simulator consults on every boat step: unit type and
// the two lead-time figures. Cached process-locally per spec §5/§9.1
// ("a small process-local cache... holds factory unit-config, cleared on
// settings change"); TTL is forever until ClearUnitConfigCache is called.
type FactoryUnitConfig struct {
	FactoryID           string
	UnitType            UnitType
	ProductionLeadDays  int
	TransportToPortDays int
}

// GetFactoryUnitConfig returns the cached unit configuration for a
// factory, loading it from Factory on a cache miss. Double-checked
// locking mirrors the metadata cache the rest of the original ingestion
// layer used for discovered table metadata.
func (s *Store) GetFactoryUnitConfig(ctx context.Context, factoryID string) (FactoryUnitConfig, error) {
	s.unitConfigMu.RLock()
	cfg, ok := s.unitConfigCache[factoryID]
	s.unitConfigMu.RUnlock()
	if ok {
		return cfg, nil
	}

	s.unitConfigMu.Lock()
	defer s.unitConfigMu.Unlock()

	if cfg, ok := s.unitConfigCache[factoryID]; ok {
		return cfg, nil
	}

	factory, err := s.GetFactory(ctx, factoryID)
	if err != nil {
		return FactoryUnitConfig{}, err
	}

	cfg = FactoryUnitConfig{
		FactoryID:           factory.ID,
		UnitType:            factory.UnitType,
		ProductionLeadDays:  factory.ProductionLeadDays,
		TransportToPortDays: factory.TransportToPortDays,
	}
	s.unitConfigCache[factoryID] = cfg
	return cfg, nil
}

// ClearUnitConfigCache invalidates the cached factory unit configuration.
// Callers trigger this after any settings change that touches factory
// lead times or unit type.
func (s *Store) ClearUnitConfigCache() {
	s.unitConfigMu.Lock()
	defer s.unitConfigMu.Unlock()
	s.unitConfigCache = make(map[string]FactoryUnitConfig)
}

// TruncateSnapshotTables clears the independently-refreshed snapshot
// tables ahead of a bulk re-ingestion run. Unlike reference data
// (products, factories, routes) these tables are wholly replaced on
// every ingestion cycle rather than upserted row by row.
func (s *Store) TruncateSnapshotTables(ctx context.Context) error {
	tables := []string{
		"warehouse_snapshots",
		"factory_snapshots",
		"transit_snapshots",
		"inventory_lots",
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin truncate transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", table)); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}

	return tx.Commit()
}
