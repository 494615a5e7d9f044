package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloudpico-baro/internal/config"
)

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name       string
		cfg        config.Config
		wantPrefix string
		wantSuffix string
	}{
		{
			name:       "explicit dsn wins",
			cfg:        config.Config{SQLiteDSN: "file::memory:?cache=shared", SQLitePath: "ignored.db"},
			wantPrefix: "file::memory:?cache=shared",
		},
		{
			name:       "memory",
			cfg:        config.Config{SQLitePath: ":memory:"},
			wantPrefix: ":memory:",
		},
		{
			name:       "plain path",
			cfg:        config.Config{SQLitePath: filepath.Join(dir, "nested", "barod.db")},
			wantPrefix: "file:" + filepath.Join(dir, "nested", "barod.db") + "?",
			wantSuffix: "_synchronous=NORMAL",
		},
		{
			name:       "file uri with query",
			cfg:        config.Config{SQLitePath: "file:/tmp/x.db?mode=rwc"},
			wantPrefix: "file:/tmp/x.db?mode=rwc&_foreign_keys=on",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.cfg)
			if err != nil {
				t.Fatalf("buildDSN() error = %v, want nil", err)
			}
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("buildDSN() = %q, want prefix %q", got, tt.wantPrefix)
			}
			if tt.wantSuffix != "" && !strings.HasSuffix(got, tt.wantSuffix) {
				t.Errorf("buildDSN() = %q, want suffix %q", got, tt.wantSuffix)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "nested")); err != nil {
		t.Errorf("database directory not created: %v", err)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barod.db")

	conn, err := Open(config.Config{SQLitePath: path})
	if err != nil {
		t.Fatalf("Open() error = %v, want nil", err)
	}
	defer func() {
		if err := Close(conn); err != nil {
			t.Fatalf("close db: %v", err)
		}
	}()

	if _, err := conn.Exec(`CREATE TABLE t (x INTEGER)`); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestClose_Nil(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Errorf("Close(nil) = %v, want nil", err)
	}
}
