package store

import (
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version"`
	AvailableVersion int             `json:"available_version"`
	Pending          []MigrationInfo `json:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// migrations is the ordered list of all schema migrations.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: files and file_tags with uniqueness constraints",
		SQL: `
CREATE TABLE IF NOT EXISTS files (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  filename TEXT NOT NULL,
  visibility TEXT NOT NULL CHECK (visibility IN ('PUBLIC', 'PRIVATE')),
  content_type TEXT,
  detected_type TEXT,
  size_bytes INTEGER NOT NULL CHECK (size_bytes >= 0),
  content_hash TEXT NOT NULL,
  blob_key TEXT NOT NULL,
  public_token TEXT NOT NULL,
  uploaded_at TEXT NOT NULL,
  UNIQUE(owner_id, content_hash),
  UNIQUE(owner_id, filename),
  UNIQUE(public_token),
  UNIQUE(blob_key)
);

CREATE TABLE IF NOT EXISTS file_tags (
  file_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  tag TEXT NOT NULL,
  tag_folded TEXT NOT NULL,
  PRIMARY KEY (file_id, position),
  FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_files_visibility_filename ON files(visibility, filename);
CREATE INDEX IF NOT EXISTS idx_file_tags_file ON file_tags(file_id);
`,
	},
	{
		Version:     2,
		Description: "add owner/upload-time and visibility/upload-time listing indexes",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_files_owner_uploaded ON files(owner_id, uploaded_at);
CREATE INDEX IF NOT EXISTS idx_files_visibility_uploaded ON files(visibility, uploaded_at);
`,
	},
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

func ensureMigrationsTable(db *sql.DB) error {
	if _, err := db.Exec(migrationsTableSQL); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

// currentVersion is 0 on a catalog that has never been migrated.
func currentVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func sortedMigrations() []Migration {
	out := append([]Migration(nil), migrations...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// pendingMigrations prepares the bookkeeping table and returns the applied
// version together with every step above it, in order.
func pendingMigrations(db *sql.DB) (int, []Migration, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return 0, nil, err
	}
	current, err := currentVersion(db)
	if err != nil {
		return 0, nil, err
	}
	var pending []Migration
	for _, m := range sortedMigrations() {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	return current, pending, nil
}

func applyMigration(db *sql.DB, m Migration) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err = tx.Exec(
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version, dbFormatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("migration %d: record version: %w", m.Version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: commit: %w", m.Version, err)
	}
	return nil
}

// runMigrations brings the catalog schema up to date. Each step runs in its
// own transaction so a failure leaves earlier steps applied.
func runMigrations(db *sql.DB) error {
	_, pending, err := pendingMigrations(db)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

// MigrationPlan reports what runMigrations would do without changing the schema.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	current, pending, err := pendingMigrations(db)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{
		CurrentVersion:   current,
		AvailableVersion: current,
		Pending:          make([]MigrationInfo, 0, len(pending)),
	}
	for _, m := range pending {
		status.Pending = append(status.Pending, MigrationInfo{Version: m.Version, Description: m.Description})
		status.AvailableVersion = m.Version
	}
	return status, nil
}
