package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File names probed, in order, for each configuration layer.
var (
	globalFileNames  = []string{"config.yaml", "config.yml", "config.json"}
	projectFileNames = []string{".outloud.yaml", ".outloud.yml", ".outloud.json"}
)

// GlobalConfigDir returns the directory holding the global configuration
// and persistent state (~/.config/outloud).
func GlobalConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "outloud")
}

// Load builds the effective configuration for a dispatch cycle: the global
// file merged with the project-level file found in workDir. Missing files
// yield defaults; a corrupt file is logged and skipped, never fatal.
func Load(workDir string) *Config {
	cfg := &Config{}

	if dir := GlobalConfigDir(); dir != "" {
		if layer := loadLayer(dir, globalFileNames); layer != nil {
			merge(cfg, layer)
		}
	}
	if workDir != "" {
		if layer := loadLayer(workDir, projectFileNames); layer != nil {
			merge(cfg, layer)
		}
	}

	if err := Validate(cfg); err != nil {
		slog.Warn("configuration has invalid values, using defaults for them", "error", err)
		sanitize(cfg)
	}
	return cfg
}

// loadLayer reads the first existing candidate file in dir. Returns nil
// when none exists or the file cannot be parsed.
func loadLayer(dir string, names []string) *Config {
	for _, name := range names {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("cannot open config file", "path", path, "error", err)
			}
			continue
		}

		cfg, err := decode(f, name)
		f.Close()
		if err != nil {
			slog.Warn("cannot parse config file, skipping", "path", path, "error", err)
			return nil
		}
		return cfg
	}
	return nil
}

// decode parses r as YAML or JSON based on the file extension.
func decode(r io.Reader, name string) (*Config, error) {
	cfg := &Config{}
	if strings.HasSuffix(name, ".json") {
		dec := json.NewDecoder(r)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: decode json: %w", err)
		}
		return cfg, nil
	}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// merge overlays non-zero fields of layer onto base. Project-level files
// override the global file field by field.
func merge(base, layer *Config) {
	if layer.Enabled != nil {
		base.Enabled = layer.Enabled
	}
	if layer.Provider != "" {
		base.Provider = layer.Provider
	}
	if layer.Voice != "" {
		base.Voice = layer.Voice
	}
	if layer.Rate != 0 {
		base.Rate = layer.Rate
	}
	if layer.LogLevel != "" {
		base.LogLevel = layer.LogLevel
	}
	if layer.Speech.ExcludeCodeBlocks != nil {
		base.Speech.ExcludeCodeBlocks = layer.Speech.ExcludeCodeBlocks
	}
	if layer.Speech.MaxLength != 0 {
		base.Speech.MaxLength = layer.Speech.MaxLength
	}
	if layer.MetricsAddr != "" {
		base.MetricsAddr = layer.MetricsAddr
	}
	for name, entry := range layer.Providers {
		if base.Providers == nil {
			base.Providers = make(map[string]ProviderEntry)
		}
		base.Providers[name] = entry
	}
}

// sanitize resets invalid fields to their defaults so a bad config never
// stops dispatch.
func sanitize(cfg *Config) {
	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		cfg.LogLevel = ""
	}
	if cfg.Rate != 0 && (cfg.Rate < 0.5 || cfg.Rate > 2.0) {
		cfg.Rate = 0
	}
	if cfg.Speech.MaxLength < 0 {
		cfg.Speech.MaxLength = 0
	}
	for name, entry := range cfg.Providers {
		if entry.Port < 0 || entry.Port > 65535 {
			entry.Port = 0
			cfg.Providers[name] = entry
		}
	}
}
