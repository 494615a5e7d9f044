package migrate

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return db
}

func TestRun_AppliesOnce(t *testing.T) {
	db := openMemory(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	n, err := Run(db, logger)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n == 0 {
		t.Fatalf("Run: applied %d migrations, want at least 1", n)
	}

	for _, table := range []string{"baro_params", "baro_ground", "baro_calibrations"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}

	again, err := Run(db, logger)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again != 0 {
		t.Errorf("second Run: applied %d migrations, want 0", again)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in          string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{in: "0001_baro_params.sql", wantVersion: "0001", wantName: "baro_params", wantOK: true},
		{in: "12_short.sql"},
		{in: "0003_missing_ext"},
		{in: "README.md"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, n, ok := parseMigrationFilename(tt.in)
			if ok != tt.wantOK || v != tt.wantVersion || n != tt.wantName {
				t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.in, v, n, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}

func TestPendingMigrations_OrderAndSkip(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0002_b.sql":   {Data: []byte("B")},
		"sql/0001_a.sql":   {Data: []byte("A")},
		"sql/0003_c.sql":   {Data: []byte("C")},
		"sql/notes.txt":    {Data: []byte("ignored")},
		"sql/0004_d.sql/x": {Data: []byte("dir")},
	}

	got, err := pendingMigrations(fsys, map[string]bool{"0002": true})
	if err != nil {
		t.Fatalf("pendingMigrations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("pendingMigrations: got %d, want 2", len(got))
	}
	if got[0].version != "0001" || got[1].version != "0003" {
		t.Errorf("pendingMigrations order: got %s, %s, want 0001, 0003", got[0].version, got[1].version)
	}
	if got[0].body != "A" {
		t.Errorf("body: got %q, want %q", got[0].body, "A")
	}
}
