package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// AppConfig captures configuration for the server, storage backend, logging
// and the reported compatibility version.
type AppConfig struct {
	Server    ServerConfig  `toml:"server" yaml:"server"`
	Storage   StorageConfig `toml:"storage" yaml:"storage"`
	Logging   LoggingConfig `toml:"logging" yaml:"logging"`
	Metrics   MetricsConfig `toml:"metrics" yaml:"metrics"`
	Cluster   ClusterConfig `toml:"cluster" yaml:"cluster"`
	ESVersion string        `toml:"es_version" yaml:"es_version"`
}

// ServerConfig controls network settings.
type ServerConfig struct {
	Listen string `toml:"listen" yaml:"listen"`
}

// StorageConfig selects the persistence driver and on-disk location.
// Supported drivers are "memory", "bolt" and "sqlite".
type StorageConfig struct {
	Driver  string `toml:"driver" yaml:"driver"`
	DataDir string `toml:"data_dir" yaml:"data_dir"`
}

// LoggingConfig controls the log level and per-request logging.
type LoggingConfig struct {
	Level       string `toml:"level" yaml:"level"`
	RequestLogs *bool  `toml:"request_logs" yaml:"request_logs"`
}

// MetricsConfig enables counters/telemetry endpoints.
type MetricsConfig struct {
	Enabled *bool `toml:"enabled" yaml:"enabled"`
}

// ClusterConfig names the single-node cluster in health and stats responses.
type ClusterConfig struct {
	Name string `toml:"name" yaml:"name"`
}

// DefaultConfig returns the baseline configuration used when no file is supplied.
func DefaultConfig() AppConfig {
	return AppConfig{
		Server:    ServerConfig{Listen: ":9200"},
		Storage:   StorageConfig{Driver: "bolt", DataDir: "data"},
		Logging:   LoggingConfig{Level: "info", RequestLogs: boolPtr(true)},
		Metrics:   MetricsConfig{Enabled: boolPtr(true)},
		Cluster:   ClusterConfig{Name: "searchlite"},
		ESVersion: "6.8.23",
	}
}

// Load reads the provided config path, merging it onto the defaults.
func Load(path string) (AppConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var fileCfg AppConfig
	switch ext {
	case ".toml":
		if err := toml.Unmarshal(content, &fileCfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse toml: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &fileCfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return AppConfig{}, errors.New("config file must be .toml, .yaml, or .yml")
	}

	merged := mergeConfig(cfg, fileCfg)
	return merged, nil
}

func mergeConfig(base, override AppConfig) AppConfig {
	if override.Server.Listen != "" {
		base.Server.Listen = override.Server.Listen
	}
	if override.Storage.Driver != "" {
		base.Storage.Driver = override.Storage.Driver
	}
	if override.Storage.DataDir != "" {
		base.Storage.DataDir = override.Storage.DataDir
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.RequestLogs != nil {
		base.Logging.RequestLogs = override.Logging.RequestLogs
	}
	if override.Metrics.Enabled != nil {
		base.Metrics.Enabled = override.Metrics.Enabled
	}
	if override.Cluster.Name != "" {
		base.Cluster.Name = override.Cluster.Name
	}
	if override.ESVersion != "" {
		base.ESVersion = override.ESVersion
	}
	return base
}

func boolPtr(v bool) *bool {
	return &v
}
