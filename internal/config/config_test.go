package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadProjectConfig(t *testing.T) {
	t.Run("valid config loads", func(t *testing.T) {
		cfg, err := LoadProjectConfig(filepath.Join("testdata", "valid_config.yaml"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Project != "test-project" {
			t.Fatalf("expected project name, got %q", cfg.Project)
		}
		if cfg.Store.Driver != DriverSQLite || cfg.Store.DSN != "sqlite://.dialoguecraft/saves.db" {
			t.Fatalf("unexpected store config %+v", cfg.Store)
		}
		if cfg.Layout.CanvasWidth != 4000 || cfg.Layout.OptionSpacing != 12 || cfg.Layout.ConnectorSpacing != 0 {
			t.Fatalf("unexpected layout config %+v", cfg.Layout)
		}
		if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
			t.Fatalf("unexpected log config %+v", cfg.Log)
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		path := writeTempConfig(t, "project: test\nversion: 1\n")
		cfg, err := LoadProjectConfig(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Store.Driver != DriverBadger || cfg.Store.DSN != DefaultBadgerDir {
			t.Fatalf("unexpected store defaults %+v", cfg.Store)
		}
		if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
			t.Fatalf("unexpected log defaults %+v", cfg.Log)
		}
	})

	t.Run("memory driver needs no dsn", func(t *testing.T) {
		path := writeTempConfig(t, "project: test\nversion: 1\nstore:\n  driver: memory\n")
		if _, err := LoadProjectConfig(path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	failing := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{"missing project name", "version: 1\n", "project name is required"},
		{"unsupported version", "project: test\nversion: 2\n", "unsupported version"},
		{"unknown driver", "project: test\nversion: 1\nstore:\n  driver: mongo\n  dsn: x\n", "store.driver"},
		{"postgres without dsn", "project: test\nversion: 1\nstore:\n  driver: postgres\n", "store.dsn"},
		{"sqlite dsn scheme", "project: test\nversion: 1\nstore:\n  driver: sqlite\n  dsn: ./saves.db\n", "sqlite://"},
		{"negative spacing", "project: test\nversion: 1\nlayout:\n  connector_spacing: -1\n", "connectorspacing"},
		{"unknown log level", "project: test\nversion: 1\nlog:\n  level: loud\n", "log.level"},
		{"invalid yaml", "project: [\n", ""},
	}
	for _, tt := range failing {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProjectConfig(writeTempConfig(t, tt.yaml))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.HasPrefix(err.Error(), "loading project config: ") {
				t.Fatalf("expected wrapped error, got %v", err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("expected %q in %v", tt.wantMsg, err)
			}
		})
	}

	t.Run("file not found", func(t *testing.T) {
		if _, err := LoadProjectConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := Write(path, Default("saga")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	cfg, err := LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("reloading written config: %v", err)
	}
	if cfg.Project != "saga" || cfg.Store.Driver != DriverBadger {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if err := Write(path, Default("saga")); err == nil {
		t.Fatalf("expected error when file exists")
	}
}

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}
