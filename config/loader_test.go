package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Base BaseConfig `mapstructure:"base"`
	Hub  struct {
		MaxConnections    int           `mapstructure:"max_connections"`
		HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	} `mapstructure:"hub"`
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yaml := `
base:
  name: streamhub
  environment: production
hub:
  max_connections: 42
  heartbeat_interval: 5s
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	var cfg testConfig
	if err := Load("streamhub", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Base.Name != "streamhub" || cfg.Base.Environment != "production" {
		t.Errorf("unexpected base config %+v", cfg.Base)
	}
	if cfg.Hub.MaxConnections != 42 {
		t.Errorf("expected 42 connections, got %d", cfg.Hub.MaxConnections)
	}
	if cfg.Hub.HeartbeatInterval != 5*time.Second {
		t.Errorf("expected 5s interval, got %s", cfg.Hub.HeartbeatInterval)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte("hub:\n  max_connections: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("HUB_MAX_CONNECTIONS", "99")

	var cfg testConfig
	if err := Load("streamhub", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Hub.MaxConnections != 99 {
		t.Errorf("expected env override 99, got %d", cfg.Hub.MaxConnections)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("BASE_NAME=from-env-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var cfg testConfig
	if err := Load("streamhub", &cfg, WithEnvFile(envPath)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Base.Name != "from-env-file" {
		t.Errorf("expected name from .env, got %q", cfg.Base.Name)
	}
}

func TestBaseConfig_Validate(t *testing.T) {
	cfg := BaseConfig{Environment: "development"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing name to fail")
	}

	cfg = BaseConfig{Name: "streamhub", Environment: "lab"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected unknown environment to fail")
	}

	cfg = BaseConfig{Name: "streamhub", Environment: "staging"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	variants := envKeyVariants("HUB_MAX_CONNECTIONS")

	want := map[string]bool{
		"hub_max_connections": false,
		"hub.max.connections": false,
		"hub.max_connections": false,
	}
	for _, v := range variants {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for key, seen := range want {
		if !seen {
			t.Errorf("expected variant %q in %v", key, variants)
		}
	}
}
