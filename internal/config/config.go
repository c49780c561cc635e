// Package config loads core configuration the same way the host
// product's own loader does: functional options over a defaulted
// struct, with per-field provenance tracking (default/env/file) so a
// caller can explain where a value came from. Layered file input goes
// through spf13/viper; environment probing is a small injectable
// lookup function so tests never touch the real environment.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Source names where a config field's value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceEnv     Source = "env"
	SourceFile    Source = "file"
)

// ResourceLimits bounds a single extension's WASM sandbox (§4.9).
type ResourceLimits struct {
	FuelUnits        uint64
	MemoryCapBytes   uint64
	TableElementCap  uint32
}

// DefaultResourceLimits matches the spec's stated defaults.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		FuelUnits:       1_000_000_000,
		MemoryCapBytes:  256 * 1024 * 1024,
		TableElementCap: 10_000,
	}
}

// Config is the core's top-level configuration.
type Config struct {
	// DataDir is where session persistence, logs, and the vector index
	// live. Overridden by CORTEX_DATA_DIR.
	DataDir string

	ReadRoots  []string
	WriteRoots []string

	ExtensionAllowlist []string

	ResourceLimits ResourceLimits

	CollabListenAddr string

	CompletionDebounce time.Duration

	Shell string

	// MetricsAddr serves /metrics when non-empty. Overridden by CORTEX_METRICS_ADDR.
	MetricsAddr string
}

func defaults() Config {
	return Config{
		DataDir:            defaultDataDir(),
		ResourceLimits:      DefaultResourceLimits(),
		CollabListenAddr:    "127.0.0.1:0",
		CompletionDebounce:  300 * time.Millisecond,
		Shell:               defaultShell(),
		MetricsAddr:         "",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cortex"
	}
	return home + "/.cortex"
}

func defaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// EnvLookup mirrors os.LookupEnv's signature so tests can inject a fake
// environment without mutating process-global state.
type EnvLookup func(key string) (string, bool)

// FileReader reads the bytes of a config file at path.
type FileReader func(path string) ([]byte, error)

// Meta tracks the provenance of every loaded field, keyed by a
// dot-path such as "data_dir" or "resource_limits.fuel_units".
type Meta struct {
	sources map[string]Source
}

func newMeta() *Meta { return &Meta{sources: make(map[string]Source)} }

func (m *Meta) set(key string, source Source) { m.sources[key] = source }

// Source returns the provenance of key, defaulting to SourceDefault if
// the key was never set.
func (m *Meta) Source(key string) Source {
	if s, ok := m.sources[key]; ok {
		return s
	}
	return SourceDefault
}

// Option customizes Load.
type Option func(*options)

type options struct {
	env        EnvLookup
	readFile   FileReader
	configPath string
}

// WithEnv injects an environment lookup, overriding os.LookupEnv.
func WithEnv(env EnvLookup) Option {
	return func(o *options) { o.env = env }
}

// WithFileReader injects a file reader, overriding os.ReadFile.
func WithFileReader(reader FileReader) Option {
	return func(o *options) { o.readFile = reader }
}

// WithConfigPath pins the config file path, overriding CORTEX_CONFIG_PATH.
func WithConfigPath(path string) Option {
	return func(o *options) { o.configPath = path }
}

// Load builds a Config from defaults, then an optional YAML/JSON file,
// then environment overrides — in that precedence order, lowest to
// highest, matching the teacher's own loader.
func Load(opts ...Option) (Config, *Meta, error) {
	o := &options{env: os.LookupEnv, readFile: os.ReadFile}
	for _, opt := range opts {
		opt(o)
	}

	cfg := defaults()
	meta := newMeta()

	configPath := o.configPath
	if configPath == "" {
		if v, ok := o.env("CORTEX_CONFIG_PATH"); ok && v != "" {
			configPath = v
		}
	}
	if configPath != "" {
		data, err := o.readFile(configPath)
		if err == nil {
			if err := applyFile(&cfg, meta, data); err != nil {
				return Config{}, nil, fmt.Errorf("parse config file %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	}

	applyEnv(&cfg, meta, o.env)

	return cfg, meta, nil
}

func applyFile(cfg *Config, meta *Meta, data []byte) error {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return err
	}
	if s := v.GetString("data_dir"); s != "" {
		cfg.DataDir = s
		meta.set("data_dir", SourceFile)
	}
	if roots := v.GetStringSlice("read_roots"); len(roots) > 0 {
		cfg.ReadRoots = roots
		meta.set("read_roots", SourceFile)
	}
	if roots := v.GetStringSlice("write_roots"); len(roots) > 0 {
		cfg.WriteRoots = roots
		meta.set("write_roots", SourceFile)
	}
	if list := v.GetStringSlice("extension_allowlist"); len(list) > 0 {
		cfg.ExtensionAllowlist = list
		meta.set("extension_allowlist", SourceFile)
	}
	if v.IsSet("resource_limits.fuel_units") {
		cfg.ResourceLimits.FuelUnits = v.GetUint64("resource_limits.fuel_units")
		meta.set("resource_limits.fuel_units", SourceFile)
	}
	if v.IsSet("resource_limits.memory_cap_bytes") {
		cfg.ResourceLimits.MemoryCapBytes = v.GetUint64("resource_limits.memory_cap_bytes")
		meta.set("resource_limits.memory_cap_bytes", SourceFile)
	}
	if v.IsSet("resource_limits.table_element_cap") {
		cfg.ResourceLimits.TableElementCap = uint32(v.GetUint32("resource_limits.table_element_cap"))
		meta.set("resource_limits.table_element_cap", SourceFile)
	}
	if s := v.GetString("collab_listen_addr"); s != "" {
		cfg.CollabListenAddr = s
		meta.set("collab_listen_addr", SourceFile)
	}
	if v.IsSet("completion_debounce_ms") {
		cfg.CompletionDebounce = time.Duration(v.GetInt64("completion_debounce_ms")) * time.Millisecond
		meta.set("completion_debounce_ms", SourceFile)
	}
	if s := v.GetString("shell"); s != "" {
		cfg.Shell = s
		meta.set("shell", SourceFile)
	}
	if s := v.GetString("metrics_addr"); s != "" {
		cfg.MetricsAddr = s
		meta.set("metrics_addr", SourceFile)
	}
	return nil
}

// applyEnv mirrors the spec's §6 requirement to read CORTEX_DATA_DIR
// (and extends the same pattern to other high-value overrides).
func applyEnv(cfg *Config, meta *Meta, env EnvLookup) {
	if v, ok := env("CORTEX_DATA_DIR"); ok && strings.TrimSpace(v) != "" {
		cfg.DataDir = v
		meta.set("data_dir", SourceEnv)
	}
	if v, ok := env("CORTEX_COLLAB_LISTEN_ADDR"); ok && strings.TrimSpace(v) != "" {
		cfg.CollabListenAddr = v
		meta.set("collab_listen_addr", SourceEnv)
	}
	if v, ok := env("CORTEX_SHELL"); ok && strings.TrimSpace(v) != "" {
		cfg.Shell = v
		meta.set("shell", SourceEnv)
	}
	if v, ok := env("CORTEX_METRICS_ADDR"); ok && strings.TrimSpace(v) != "" {
		cfg.MetricsAddr = v
		meta.set("metrics_addr", SourceEnv)
	}
}
