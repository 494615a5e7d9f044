package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"cloudpico-baro/internal/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNew_JSONAttributes(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo, BaroLogLevel: slog.LevelInfo, VehicleID: "uav-1"}

	newLogger(&buf, cfg, "1.2.3", "barod").Info("hello")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	for k, want := range map[string]string{"app": "barod", "version": "1.2.3", "env": "prod", "vehicle": "uav-1"} {
		if got := lines[0][k]; got != want {
			t.Errorf("%s = %v, want %q", k, got, want)
		}
	}
}

func TestComponent_LevelOverride(t *testing.T) {
	tests := []struct {
		name          string
		root, baro    slog.Level
		wantRootDebug bool
		wantBaroDebug bool
	}{
		{name: "verbose component", root: slog.LevelInfo, baro: slog.LevelDebug, wantBaroDebug: true},
		{name: "quiet component", root: slog.LevelDebug, baro: slog.LevelWarn, wantRootDebug: true},
		{name: "same level", root: slog.LevelInfo, baro: slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := config.Config{AppEnv: "prod", LogLevel: tt.root, BaroLogLevel: tt.baro}
			root := newLogger(&buf, cfg, "1.0.0", "barod")
			baro := Component(root, "baro", cfg.BaroLogLevel)

			root.Debug("root debug")
			baro.Debug("baro debug")
			baro.Warn("baro warn")

			var rootDebug, baroDebug, baroWarn bool
			for _, l := range decodeLines(t, &buf) {
				switch l["msg"] {
				case "root debug":
					rootDebug = true
				case "baro debug":
					baroDebug = true
					if l["component"] != "baro" {
						t.Errorf("component = %v, want baro", l["component"])
					}
				case "baro warn":
					baroWarn = true
				}
			}
			if rootDebug != tt.wantRootDebug {
				t.Errorf("root debug logged = %v, want %v", rootDebug, tt.wantRootDebug)
			}
			if baroDebug != tt.wantBaroDebug {
				t.Errorf("baro debug logged = %v, want %v", baroDebug, tt.wantBaroDebug)
			}
			if !baroWarn {
				t.Errorf("baro warn not logged")
			}
		})
	}
}
