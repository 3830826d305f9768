package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"runs", "results"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/history.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := openTestStore(t)

	db := s.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

// Schema tests

func TestSchema_Columns(t *testing.T) {
	s := openTestStore(t)

	tests := map[string][]string{
		"runs": {
			"id", "suite", "base_url", "started_at", "finished_at", "interrupted",
			"total", "passed", "failed", "critical_failures",
		},
		"results": {
			"run_id", "seq", "suite", "grp", "step", "success", "critical",
			"kind", "status", "message", "details", "timestamp", "duration_ms",
		},
	}
	for table, expected := range tests {
		columns := getTableColumns(t, s.db, table)
		for _, col := range expected {
			if !contains(columns, col) {
				t.Errorf("%s table missing column %q", table, col)
			}
		}
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := openTestStore(t)

	if !contains(getTableIndexes(t, s.db, "runs"), "idx_runs_started_at") {
		t.Error("runs table missing index idx_runs_started_at")
	}
	if !contains(getTableIndexes(t, s.db, "results"), "idx_results_step") {
		t.Error("results table missing index idx_results_step")
	}
}

// Constraint tests

func insertRun(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO runs (id, suite, base_url, started_at) VALUES (?, 'platform', 'http://x/api', '2024-03-01T09:00:00.000Z')`, id)
	if err != nil {
		t.Fatalf("failed to insert run: %v", err)
	}
}

func insertResult(db *sql.DB, runID string, seq int) error {
	_, err := db.Exec(`
		INSERT INTO results (run_id, seq, suite, grp, step, success, critical, timestamp)
		VALUES (?, ?, 'platform', 'Auth', 'Login', 1, 1, '2024-03-01T09:00:00.010Z')
	`, runID, seq)
	return err
}

func TestConstraint_ResultSeqUniquePerRun(t *testing.T) {
	s := openTestStore(t)
	insertRun(t, s.db, "run1")
	insertRun(t, s.db, "run2")

	if err := insertResult(s.db, "run1", 1); err != nil {
		t.Fatalf("failed to insert first result: %v", err)
	}
	if err := insertResult(s.db, "run1", 1); err == nil {
		t.Error("expected PRIMARY KEY violation for duplicate (run_id, seq), got nil")
	}
	if err := insertResult(s.db, "run2", 1); err != nil {
		t.Errorf("same seq in another run should be allowed: %v", err)
	}
}

func TestConstraint_ForeignKeyResultToRun(t *testing.T) {
	s := openTestStore(t)

	if err := insertResult(s.db, "nonexistent", 1); err == nil {
		t.Error("expected foreign key constraint violation, got nil")
	}
}

func TestConstraint_DeleteRunCascades(t *testing.T) {
	s := openTestStore(t)
	insertRun(t, s.db, "run1")
	for seq := 1; seq <= 3; seq++ {
		if err := insertResult(s.db, "run1", seq); err != nil {
			t.Fatalf("failed to insert result %d: %v", seq, err)
		}
	}

	if _, err := s.db.Exec(`DELETE FROM runs WHERE id = 'run1'`); err != nil {
		t.Fatalf("delete run: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&count); err != nil {
		t.Fatalf("count results: %v", err)
	}
	if count != 0 {
		t.Errorf("results left after run delete = %d, want 0", count)
	}
}

// Migration tests

func TestMigration_SchemaVersion(t *testing.T) {
	s := openTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	// Schema without migrations simulates a database from before v1.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	if contains(getTableIndexes(t, db, "results"), "idx_results_step") {
		t.Fatal("v0 database should not have idx_results_step yet")
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d after migration", version, currentSchemaVersion)
	}
	if !contains(getTableIndexes(t, s.db, "results"), "idx_results_step") {
		t.Error("expected idx_results_step after migration")
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// verifyPragma fails unless PRAGMA name reads expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
