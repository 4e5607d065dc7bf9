// Package config provides the configuration schema, loader, and provider
// registry for the outloud speech dispatcher.
//
// Configuration merges two layers: a global file under the user's config
// directory and an optional project-level file in the working directory the
// hook fired from. A missing or corrupt file is never fatal — the effective
// configuration falls back to defaults so the pipeline always has a
// coherent snapshot.
package config

import (
	"errors"
	"fmt"
	"log/slog"
)

// LogLevel controls log verbosity for the outloud CLI.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to a slog.Level; unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for outloud. It is loaded from
// YAML or JSON files using [Load] and treated as an immutable snapshot for
// the duration of one dispatch cycle.
type Config struct {
	// Enabled turns speech dispatch on or off. Nil means enabled.
	Enabled *bool `yaml:"enabled" json:"enabled"`

	// Provider names the active TTS backend. Empty selects the baseline.
	Provider string `yaml:"provider" json:"provider"`

	// Voice is the provider-specific voice selector.
	Voice string `yaml:"voice" json:"voice"`

	// Rate adjusts speaking speed (0.5–2.0, 0 = provider default).
	Rate float64 `yaml:"rate" json:"rate"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level" json:"log_level"`

	// Speech bounds text normalization.
	Speech SpeechConfig `yaml:"speech" json:"speech"`

	// Providers holds per-backend settings keyed by provider name.
	Providers map[string]ProviderEntry `yaml:"providers" json:"providers"`

	// MetricsAddr, when non-empty, enables the debug metrics listener on
	// that address during a dispatch cycle (e.g., "127.0.0.1:9464").
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// SpeechConfig bounds the text normalization options.
type SpeechConfig struct {
	// ExcludeCodeBlocks replaces code with spoken placeholders. Nil means
	// enabled.
	ExcludeCodeBlocks *bool `yaml:"exclude_code_blocks" json:"exclude_code_blocks"`

	// MaxLength caps spoken text length in characters. Zero means no cap.
	MaxLength int `yaml:"max_length" json:"max_length"`
}

// ProviderEntry is the common per-backend configuration block.
type ProviderEntry struct {
	// APIKey overrides the environment's credential for this backend.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model" json:"model"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Command is the local server launch command (chatterbox).
	Command string `yaml:"command" json:"command"`

	// Port is the local server port (chatterbox).
	Port int `yaml:"port" json:"port"`
}

// IsEnabled reports the effective enabled state (default true).
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ExcludeCodeBlocks reports the effective code-exclusion state (default true).
func (c *Config) ExcludeCodeBlocks() bool {
	return c.Speech.ExcludeCodeBlocks == nil || *c.Speech.ExcludeCodeBlocks
}

// Entry returns the per-backend settings for name, zero-valued when absent.
func (c *Config) Entry(name string) ProviderEntry {
	return c.Providers[name]
}

// APIKeyOverrides collects non-empty api_key fields per provider, for the
// credential store.
func (c *Config) APIKeyOverrides() map[string]string {
	out := make(map[string]string, len(c.Providers))
	for name, entry := range c.Providers {
		if entry.APIKey != "" {
			out[name] = entry.APIKey
		}
	}
	return out
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.Rate != 0 && (cfg.Rate < 0.5 || cfg.Rate > 2.0) {
		errs = append(errs, fmt.Errorf("rate %.2f is out of range [0.5, 2.0]", cfg.Rate))
	}
	if cfg.Speech.MaxLength < 0 {
		errs = append(errs, fmt.Errorf("speech.max_length must not be negative"))
	}
	for name, entry := range cfg.Providers {
		if entry.Port < 0 || entry.Port > 65535 {
			errs = append(errs, fmt.Errorf("providers.%s.port %d is out of range", name, entry.Port))
		}
	}

	return errors.Join(errs...)
}
