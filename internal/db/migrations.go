package db

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pinggolf/tile-supply-planner/internal/apperr"
)

// RunMigrations applies every pending schema_migrations entry under
// migrationsPath against the planner's own schema (products, factories,
// boat_schedules, warehouse_orders, ... — §6.3). Unlike the reference
// lifecycle transitions in warehouse_orders.go/drafts.go, schema
// migrations have no business-level state machine: a version is either
// applied or not, strictly in filename order.
func RunMigrations(conn *sql.DB, migrationsPath string) error {
	if err := createMigrationsTable(conn); err != nil {
		return apperr.Wrap("create schema_migrations table", err)
	}

	applied, err := getAppliedMigrations(conn)
	if err != nil {
		return apperr.Wrap("list applied migrations", err)
	}

	files, err := getMigrationFiles(migrationsPath)
	if err != nil {
		return apperr.Wrap("read migration files", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file, ".up.sql") {
			continue
		}
		if applied[file] {
			log.Printf("migration %s already applied, skipping", file)
			continue
		}

		migrationPath := filepath.Join(migrationsPath, file)
		sqlContent, err := os.ReadFile(migrationPath)
		if err != nil {
			return apperr.Wrap("read migration "+file, err)
		}

		log.Printf("applying migration: %s", file)
		if err := applyMigration(conn, file, string(sqlContent)); err != nil {
			return apperr.Wrap("apply migration "+file, err)
		}
		log.Printf("applied migration: %s", file)
	}

	log.Println("schema is up to date")
	return nil
}

// createMigrationsTable is idempotent so every process boot can call
// RunMigrations without a separate provisioning step.
func createMigrationsTable(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			version VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// getAppliedMigrations returns the set of already-applied migration
// filenames.
func getAppliedMigrations(conn *sql.DB) (map[string]bool, error) {
	rows, err := conn.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// getMigrationFiles returns every *.sql filename under migrationsPath,
// sorted so migrations run in their numeric/lexical prefix order.
func getMigrationFiles(migrationsPath string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(migrationsPath, "*.sql"))
	if err != nil {
		return nil, err
	}

	fileNames := make([]string, 0, len(files))
	for _, file := range files {
		fileNames = append(fileNames, filepath.Base(file))
	}
	sort.Strings(fileNames)

	return fileNames, nil
}

// applyMigration runs one migration file's SQL and records it as applied,
// both inside the same transaction.
func applyMigration(conn *sql.DB, version string, sqlContent string) error {
	tx, err := conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(sqlContent); err != nil {
		return apperr.Wrap("execute migration SQL", err)
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return apperr.Wrap("record applied migration", err)
	}

	return tx.Commit()
}
