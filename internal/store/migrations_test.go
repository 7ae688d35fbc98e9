package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
)

func migratedDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := openDB(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := runMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}

func latestVersion() int {
	all := sortedMigrations()
	return all[len(all)-1].Version
}

func TestMigrationPlanBeforeAndAfter(t *testing.T) {
	db, err := openDB(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	plan, err := MigrationPlan(db)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.CurrentVersion != 0 || plan.AvailableVersion != latestVersion() || len(plan.Pending) != len(migrations) {
		t.Fatalf("unexpected fresh plan %#v", plan)
	}

	for i := 0; i < 2; i++ {
		if err := runMigrations(db); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	plan, err = MigrationPlan(db)
	if err != nil {
		t.Fatalf("plan after migrate: %v", err)
	}
	if plan.CurrentVersion != latestVersion() || len(plan.Pending) != 0 {
		t.Fatalf("expected fully migrated plan, got %#v", plan)
	}
}

func TestSchemaObjects(t *testing.T) {
	db := migratedDB(t)
	objects := map[string]string{
		"files":                         "table",
		"file_tags":                     "table",
		"idx_files_visibility_filename": "index",
		"idx_files_owner_uploaded":      "index",
		"idx_files_visibility_uploaded": "index",
	}
	for name, kind := range objects {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name).Scan(&count); err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		if count != 1 {
			t.Fatalf("%s %s missing", kind, name)
		}
	}
}

func TestSchemaUniqueness(t *testing.T) {
	insert := func(db *sql.DB, id, owner, filename, visibility, hash, blob, token string) error {
		_, err := db.Exec(`INSERT INTO files (id, owner_id, filename, visibility, size_bytes, content_hash, blob_key, public_token, uploaded_at)
			VALUES (?, ?, ?, ?, 0, ?, ?, ?, '2026-01-01T00:00:00.000000000Z')`, id, owner, filename, visibility, hash, blob, token)
		return err
	}

	tests := []struct {
		name                                    string
		owner, filename, visibility, hash, blob string
		token                                   string
		wantErr                                 bool
	}{
		{"same hash other owner", "bob", "a.txt", "PRIVATE", "h1", "b2", "t2", false},
		{"same filename other owner", "bob", "base.txt", "PRIVATE", "h2", "b2", "t2", false},
		{"same owner same hash", "alice", "other.txt", "PRIVATE", "h1", "b2", "t2", true},
		{"same owner same filename", "alice", "base.txt", "PRIVATE", "h2", "b2", "t2", true},
		{"token reused", "bob", "x.txt", "PRIVATE", "h2", "b2", "t1", true},
		{"blob key reused", "bob", "x.txt", "PRIVATE", "h2", "b1", "t2", true},
		{"unknown visibility", "bob", "x.txt", "SHARED", "h2", "b2", "t2", true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := migratedDB(t)
			if err := insert(db, "fl-base", "alice", "base.txt", "PUBLIC", "h1", "b1", "t1"); err != nil {
				t.Fatalf("seed: %v", err)
			}
			err := insert(db, fmt.Sprintf("fl-%d", i), tt.owner, tt.filename, tt.visibility, tt.hash, tt.blob, tt.token)
			if tt.wantErr && err == nil {
				t.Fatal("expected constraint violation")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
