package config

import (
	"fmt"
	"os"
	"testing"
	"time"
)

func fakeEnv(values map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadAppliesDefaultsWhenNothingSet(t *testing.T) {
	cfg, meta, err := Load(WithEnv(fakeEnv(nil)))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ResourceLimits.FuelUnits != DefaultResourceLimits().FuelUnits {
		t.Fatalf("expected default fuel units, got %d", cfg.ResourceLimits.FuelUnits)
	}
	if meta.Source("data_dir") != SourceDefault {
		t.Fatalf("expected data_dir source default, got %v", meta.Source("data_dir"))
	}
}

func TestLoadReadsDataDirFromEnv(t *testing.T) {
	cfg, meta, err := Load(WithEnv(fakeEnv(map[string]string{"CORTEX_DATA_DIR": "/var/cortex"})))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DataDir != "/var/cortex" {
		t.Fatalf("expected /var/cortex, got %q", cfg.DataDir)
	}
	if meta.Source("data_dir") != SourceEnv {
		t.Fatalf("expected env source, got %v", meta.Source("data_dir"))
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	yaml := []byte(`
data_dir: /srv/cortex
read_roots:
  - /workspace
write_roots:
  - /workspace/out
resource_limits:
  fuel_units: 5000000
  memory_cap_bytes: 1048576
  table_element_cap: 256
collab_listen_addr: "0.0.0.0:9000"
completion_debounce_ms: 500
shell: /bin/zsh
`)
	reader := func(path string) ([]byte, error) {
		if path != "/etc/cortex/config.yaml" {
			return nil, fmt.Errorf("unexpected path %q", path)
		}
		return yaml, nil
	}
	cfg, meta, err := Load(
		WithEnv(fakeEnv(nil)),
		WithFileReader(reader),
		WithConfigPath("/etc/cortex/config.yaml"),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DataDir != "/srv/cortex" {
		t.Fatalf("expected /srv/cortex, got %q", cfg.DataDir)
	}
	if len(cfg.ReadRoots) != 1 || cfg.ReadRoots[0] != "/workspace" {
		t.Fatalf("unexpected read roots: %+v", cfg.ReadRoots)
	}
	if cfg.ResourceLimits.FuelUnits != 5_000_000 {
		t.Fatalf("unexpected fuel units: %d", cfg.ResourceLimits.FuelUnits)
	}
	if cfg.ResourceLimits.TableElementCap != 256 {
		t.Fatalf("unexpected table cap: %d", cfg.ResourceLimits.TableElementCap)
	}
	if cfg.CompletionDebounce != 500*time.Millisecond {
		t.Fatalf("unexpected debounce: %v", cfg.CompletionDebounce)
	}
	if meta.Source("resource_limits.fuel_units") != SourceFile {
		t.Fatalf("expected file source, got %v", meta.Source("resource_limits.fuel_units"))
	}
}

func TestEnvOverridesFile(t *testing.T) {
	yaml := []byte("data_dir: /srv/cortex\n")
	reader := func(string) ([]byte, error) { return yaml, nil }
	cfg, meta, err := Load(
		WithEnv(fakeEnv(map[string]string{"CORTEX_DATA_DIR": "/override"})),
		WithFileReader(reader),
		WithConfigPath("/etc/cortex/config.yaml"),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DataDir != "/override" {
		t.Fatalf("expected env override to win, got %q", cfg.DataDir)
	}
	if meta.Source("data_dir") != SourceEnv {
		t.Fatalf("expected env source to win over file, got %v", meta.Source("data_dir"))
	}
}

func TestMissingConfigFileIsNotAnError(t *testing.T) {
	reader := func(path string) ([]byte, error) {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	_, _, err := Load(
		WithEnv(fakeEnv(nil)),
		WithFileReader(reader),
		WithConfigPath("/does/not/exist.yaml"),
	)
	if err != nil {
		t.Fatalf("expected missing config file to be tolerated, got %v", err)
	}
}
