package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Server.Listen != ":9200" {
		t.Fatalf("unexpected default listen: %q", cfg.Server.Listen)
	}
	if cfg.Storage.Driver != "bolt" || cfg.Storage.DataDir != "data" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("unexpected default log level: %q", cfg.Logging.Level)
	}
	if cfg.ESVersion != "6.8.23" {
		t.Fatalf("unexpected default version: %q", cfg.ESVersion)
	}
	if cfg.Metrics.Enabled == nil || !*cfg.Metrics.Enabled {
		t.Fatalf("expected metrics enabled by default")
	}
}

func TestLoadTOMLOverridesOntoDefaults(t *testing.T) {
	path := writeConfig(t, "config.toml", `
es_version = "6.8.0"

[server]
listen = ":9300"

[storage]
driver = "sqlite"

[logging]
level = "debug"
request_logs = false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load toml: %v", err)
	}
	if cfg.Server.Listen != ":9300" {
		t.Fatalf("expected listen override, got %q", cfg.Server.Listen)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("expected driver override, got %q", cfg.Storage.Driver)
	}
	if cfg.Storage.DataDir != "data" {
		t.Fatalf("expected untouched default data dir, got %q", cfg.Storage.DataDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected log level override, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.RequestLogs == nil || *cfg.Logging.RequestLogs {
		t.Fatalf("expected request logs disabled")
	}
	if cfg.ESVersion != "6.8.0" {
		t.Fatalf("expected version override, got %q", cfg.ESVersion)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  listen: ":8081"
storage:
  data_dir: /var/lib/searchlite
cluster:
  name: staging
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.Server.Listen != ":8081" {
		t.Fatalf("expected yaml listen override, got %q", cfg.Server.Listen)
	}
	if cfg.Storage.DataDir != "/var/lib/searchlite" {
		t.Fatalf("expected yaml data dir override, got %q", cfg.Storage.DataDir)
	}
	if cfg.Storage.Driver != "bolt" {
		t.Fatalf("expected untouched default driver, got %q", cfg.Storage.Driver)
	}
	if cfg.Cluster.Name != "staging" {
		t.Fatalf("expected cluster name override, got %q", cfg.Cluster.Name)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeConfig(t, "config.json", `{}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an unsupported config format")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}
